/*
Package config loads the calculator service configuration.

# Overview

Config wraps a map[string]any, as produced by decoding YAML or JSON, and
provides typed accessors that return a default when a key is missing or
has the wrong type. Keys may be dotted paths into nested maps.

Settings is the typed view the service actually runs on.

# File Format

	server:
	  addr: localhost:8080
	  prefix: /calc
	  read_timeout: 15s
	  write_timeout: 15s
	store:
	  driver: sqlite      # memory | sqlite
	  path: calc.db
	session:
	  ttl: 30m
	  sweep_interval: 1m
	limits:
	  min: -10000
	  max: 10000
	log:
	  level: info         # debug | info | warn | error
	  format: text        # text | json

# Basic Usage

	s, err := config.Load("calcd.yaml")
	if err != nil {
	    log.Fatal(err)
	}

Durations accept Go duration strings ("30s") or a number of seconds.
*/
package config
