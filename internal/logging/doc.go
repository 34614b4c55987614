// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog logger shared by every component.
//
// The interactive REPL owns stdout, so logs go to a file by default.
// Components receive the logger by injection and add a "component" field.
package logging
