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

// Command bond-sender is the sending-endpoint daemon: it reads a raw
// media elementary stream from stdin, chunks it to the configured MTU,
// and enqueues it onto a bonded multi-path session.
package main

import (
	"context"
	"flag"
	"io"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/bondwire/bond/config"
	"github.com/bondwire/bond/control"
	"github.com/bondwire/bond/path"
	"github.com/bondwire/bond/scheduler"
	"github.com/bondwire/bond/session"
	"github.com/bondwire/bond/telemetry"
	"github.com/bondwire/bond/transport/udp"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to a bond-sender YAML config")
	flag.Parse()

	if cfgPath == "" {
		log.Fatal("missing required -config flag")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg.ApplyLogLevel()
	if cfg.Role != "sender" {
		log.Fatalf("config role %q does not match bond-sender", cfg.Role)
	}

	if cfg.DebugAddress != "" {
		log.Warningf("starting pprof on %s", cfg.DebugAddress)
		go func() {
			log.Println(http.ListenAndServe(cfg.DebugAddress, nil))
		}()
	}

	sender := session.NewSender(cfg.SessionConfig())
	for _, p := range cfg.Paths {
		local, err := net.ResolveUDPAddr("udp", p.LocalBind)
		if err != nil {
			log.Fatalf("resolving local_bind %q: %v", p.LocalBind, err)
		}
		remote, err := net.ResolveUDPAddr("udp", p.RemoteAddr)
		if err != nil {
			log.Fatalf("resolving remote_addr %q: %v", p.RemoteAddr, err)
		}
		err = sender.AddPathDial(path.ID(p.ID), udp.Config{
			LocalBind:  local,
			RemoteAddr: remote,
			DSCP:       p.DSCP,
			Iface:      p.Iface,
		})
		if err != nil {
			log.Fatalf("adding path %d: %v", p.ID, err)
		}
	}

	if cfg.MetricsAddress != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(telemetry.NewCollector(sender))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.Handle("/status", telemetry.NewJSONHandler(sender))
		mux.Handle("/command", control.NewHandler(sender))
		go func() {
			log.WithError(http.ListenAndServe(cfg.MetricsAddress, mux)).Error("telemetry server exited")
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := telemetry.HostPressureLoop(ctx, sender, telemetry.DefaultHostSampleInterval); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("host pressure sampler exited")
		}
	}()

	if supported, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.WithError(err).Warn("sd_notify failed")
	} else if !supported {
		log.Debug("sd_notify not supported")
	}

	mtu := int(cfg.MTU)
	buf := make([]byte, mtu)
	for {
		select {
		case <-ctx.Done():
			sender.Close()
			return
		default:
		}
		n, err := io.ReadFull(os.Stdin, buf)
		if n > 0 {
			payload := append([]byte(nil), buf[:n]...)
			if _, err := sender.Enqueue(ctx, payload, scheduler.PriorityStandard, time.Time{}); err != nil {
				log.WithError(err).Debug("enqueue failed")
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			log.Info("stdin closed, draining session")
			sender.Close()
			return
		}
		if err != nil {
			log.WithError(err).Fatal("reading stdin")
		}
	}
}
