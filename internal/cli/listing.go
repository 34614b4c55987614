// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/sidechat/internal/conversation"
	"github.com/jeranaias/sidechat/internal/model"
)

const titleColumn = 44

// listingOrder returns conversation ids in the order printGroups numbers
// them.
func listingOrder(repo *conversation.Repository) []string {
	var ids []string
	for _, g := range repo.Groups(time.Now()) {
		for _, c := range g.Conversations {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// printGroups prints the collection bucketed by age and returns the ids in
// numbered order.
func printGroups(w io.Writer, repo *conversation.Repository, activeID string) []string {
	groups := repo.Groups(time.Now())
	if len(groups) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No conversations yet"))
		return nil
	}

	var ids []string
	for _, g := range groups {
		fmt.Fprintln(w, GroupStyle.Render(g.Label))
		for _, c := range g.Conversations {
			ids = append(ids, c.ID)
			fmt.Fprintln(w, row(len(ids), c, c.ID == activeID))
		}
	}
	return ids
}

// printResults prints search results and returns their ids.
func printResults(w io.Writer, convs []*model.Conversation) []string {
	if len(convs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No matches"))
		return nil
	}
	ids := make([]string, 0, len(convs))
	for i, c := range convs {
		ids = append(ids, c.ID)
		fmt.Fprintln(w, row(i+1, c, false))
	}
	return ids
}

func row(n int, c *model.Conversation, active bool) string {
	marker := "  "
	if active {
		marker = ActiveStyle.Render("* ")
	}
	meta := fmt.Sprintf("%3d msgs  %s", len(c.Messages), c.TouchedAt.Local().Format("Jan 02 15:04"))
	return fmt.Sprintf("%s%3d. %s  %s", marker, n, fitColumn(c.Title, titleColumn), DimStyle.Render(meta))
}

// resolveID finds the single conversation whose id starts with prefix.
func resolveID(repo *conversation.Repository, prefix string) (string, error) {
	if _, ok := repo.Get(prefix); ok {
		return prefix, nil
	}

	var match string
	for _, c := range repo.List() {
		if !strings.HasPrefix(c.ID, prefix) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("%q matches more than one conversation", prefix)
		}
		match = c.ID
	}
	if match == "" {
		return "", errors.New("no such conversation: " + prefix)
	}
	return match, nil
}
