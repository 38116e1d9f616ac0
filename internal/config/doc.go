// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package config loads and validates the daemon configuration.
//
// Configuration composes from three layers with clear precedence:
//
//	Environment variables > YAML config file > built-in defaults
//
// The file is searched at the DefaultConfigPaths unless CONFIG_PATH
// points somewhere else. Environment variables map to config paths
// through an explicit table (see envTransformFunc); anything not in the
// table is ignored rather than merged.
//
// Besides daemon settings, the file declares the known gamepacks and
// their per-subpack stat schemas, which BuildSchemaRegistry turns into
// the column registry the ingest pipeline validates against:
//
//	packs:
//	  - id: rocketpack
//	    name: Rocket League
//	    subpacks:
//	      - index: 0
//	        columns:
//	          goals: int
//	          saves: int
//	          score: float
//
// The packs section is file-only; flat environment variables cannot
// express it.
package config
