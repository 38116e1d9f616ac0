// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package config

import (
	"fmt"

	"github.com/matchkeeper/matchkeeper/internal/schema"
	"github.com/matchkeeper/matchkeeper/internal/validation"
)

// Validate checks the whole configuration tree: struct tag rules first,
// then the sub-config Validate methods, then cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Server.DefaultPageSize > c.Server.MaxPageSize {
		return fmt.Errorf("config: server default_page_size %d exceeds max_page_size %d",
			c.Server.DefaultPageSize, c.Server.MaxPageSize)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Recovery.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Backup.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return c.validatePacks()
}

// validatePacks rejects duplicate pack IDs, duplicate subpack indexes
// and unknown column types. Registration would catch the column errors
// too, but failing here names the offending pack in the message.
func (c *Config) validatePacks() error {
	seenPacks := make(map[string]struct{}, len(c.Packs))
	for _, pack := range c.Packs {
		if _, dup := seenPacks[pack.ID]; dup {
			return fmt.Errorf("config: duplicate pack id %q", pack.ID)
		}
		seenPacks[pack.ID] = struct{}{}

		seenSubs := make(map[uint8]struct{}, len(pack.Subpacks))
		for _, sub := range pack.Subpacks {
			if _, dup := seenSubs[sub.Index]; dup {
				return fmt.Errorf("config: pack %q: duplicate subpack index %d", pack.ID, sub.Index)
			}
			seenSubs[sub.Index] = struct{}{}

			for name, ct := range sub.Columns {
				if name == "" {
					return fmt.Errorf("config: pack %q subpack %d: empty column name", pack.ID, sub.Index)
				}
				if !schema.ColumnType(ct).Valid() {
					return fmt.Errorf("config: pack %q subpack %d: column %q has unknown type %q",
						pack.ID, sub.Index, name, ct)
				}
			}
		}
	}
	return nil
}
