// Command flowlab-sim drives the flow-cache simulator: it replays a packet
// source through the flow table, feature builder, predictive cache, and
// Belady reference simulators, then optionally serves the resulting
// flow-stats samples and Prometheus metrics over HTTP.
package main

import (
	"flag"
	"log"
)

func main() {
	configPath := flag.String("config", "", "path to HCL config file")
	addr := flag.String("addr", ":8080", "sampling/metrics listen address")
	flag.Parse()

	args := flag.Args()
	subcmd := ""
	if len(args) > 0 {
		subcmd = args[0]
	}

	switch subcmd {
	case "replay":
		if len(args) < 2 {
			log.Fatal("usage: flowlab-sim [-config file.hcl] [-addr :8080] replay <capture-name>")
		}
		if err := runReplay(*configPath, *addr, args[1]); err != nil {
			log.Fatalf("replay failed: %v", err)
		}
	case "server", "":
		if err := runServer(*configPath, *addr); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	default:
		log.Fatalf("unknown command: %s", subcmd)
	}
}
