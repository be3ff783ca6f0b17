// Package config loads scenario definitions from YAML or JSON files.
//
// A file describes one scenario. Values left out keep the defaults of the
// preset named by "preset" (or scenario.DefaultConfig when no preset is given).
//
//	scenario:
//	  preset: contention
//	  name: my-run
//	  duration: 30s
//	  semaphore:
//	    units: 2
//	    clients: 10
//	    hold_time: 5ms
//	  chaos:
//	    enabled: true
//	    interval: 100ms
//	    attack_types: [cancel, delay]
//
// Validate reports every problem in the file at once.
package config
