package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"dhtnode/host"
)

func main() {
	bind := flag.String("bind", "0.0.0.0:6881", "UDP address to listen on")
	bootstrap := flag.String("bootstrap", "", "address of a known-good node to join through (host:port)")
	flag.Parse()

	bindAddr, err := net.ResolveUDPAddr("udp4", *bind)
	if err != nil {
		logrus.WithField("bind", *bind).Fatalf("bad bind address: %v", err)
	}

	h, err := host.NewBuilder().Listen(bindAddr).Build()
	if err != nil {
		logrus.Fatalf("building host: %v", err)
	}

	fmt.Println("node id =", h.ID())
	fmt.Println("listening on", h.Addr())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := h.Serve(ctx); err != nil {
			logrus.WithError(err).Error("serve loop exited")
		}
	}()

	if *bootstrap != "" {
		bootstrapAddr, err := net.ResolveUDPAddr("udp4", *bootstrap)
		if err != nil {
			logrus.WithField("bootstrap", *bootstrap).Fatalf("bad bootstrap address: %v", err)
		}
		if err := h.Join(ctx, bootstrapAddr); err != nil {
			logrus.WithError(err).Warn("bootstrap join failed")
		}
	}

	<-ctx.Done()
}
