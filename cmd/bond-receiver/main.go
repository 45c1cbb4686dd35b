/*
Copyright (c) The Bond Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command bond-receiver is the receiving-endpoint daemon: it reassembles
// a bonded multi-path session's stream and writes the reassembled units
// to stdout in sequence order.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/bondwire/bond/config"
	"github.com/bondwire/bond/control"
	"github.com/bondwire/bond/path"
	"github.com/bondwire/bond/session"
	"github.com/bondwire/bond/telemetry"
	"github.com/bondwire/bond/transport/udp"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to a bond-receiver YAML config")
	flag.Parse()

	if cfgPath == "" {
		log.Fatal("missing required -config flag")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg.ApplyLogLevel()
	if cfg.Role != "receiver" {
		log.Fatalf("config role %q does not match bond-receiver", cfg.Role)
	}

	if cfg.DebugAddress != "" {
		log.Warningf("starting pprof on %s", cfg.DebugAddress)
		go func() {
			log.Println(http.ListenAndServe(cfg.DebugAddress, nil))
		}()
	}

	receiver := session.NewReceiver(cfg.SessionConfig())
	for _, p := range cfg.Paths {
		local, err := net.ResolveUDPAddr("udp", p.LocalBind)
		if err != nil {
			log.Fatalf("resolving local_bind %q: %v", p.LocalBind, err)
		}
		remote, err := net.ResolveUDPAddr("udp", p.RemoteAddr)
		if err != nil {
			log.Fatalf("resolving remote_addr %q: %v", p.RemoteAddr, err)
		}
		err = receiver.AddPathDial(path.ID(p.ID), udp.Config{
			LocalBind:  local,
			RemoteAddr: remote,
			DSCP:       p.DSCP,
			Iface:      p.Iface,
		})
		if err != nil {
			log.Fatalf("adding path %d: %v", p.ID, err)
		}
	}
	receiver.Start()

	if cfg.MetricsAddress != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(telemetry.NewCollector(receiver))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.Handle("/status", telemetry.NewJSONHandler(receiver))
		mux.Handle("/command", control.NewHandler(receiver))
		go func() {
			log.WithError(http.ListenAndServe(cfg.MetricsAddress, mux)).Error("telemetry server exited")
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if supported, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.WithError(err).Warn("sd_notify failed")
	} else if !supported {
		log.Debug("sd_notify not supported")
	}

	for {
		unit, err := receiver.NextBuffer(ctx)
		if err != nil {
			log.WithError(err).Info("receiver closed")
			return
		}
		if _, err := os.Stdout.Write(unit); err != nil {
			log.WithError(err).Fatal("writing stdout")
		}
	}
}
