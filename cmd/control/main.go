// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/vabaly/phala-blockchain/auth"
	"github.com/vabaly/phala-blockchain/chain"
	"github.com/vabaly/phala-blockchain/web/client"
	"github.com/vabaly/phala-blockchain/web/handlers"
)

var (
	addr   = flag.String("addr", "localhost:8081", "Address (hostname:port) where control server is listening")
	user   = flag.String("user", "operator", "Operator name to authenticate as")
	secret = flag.String("secret", os.Getenv("CONTROL_AUTH_SECRET"), "Hex encoded control auth secret, if empty no credentials are sent")
	mode   = flag.String("mode", "queue", "One of 'queue', 'loglevel' or 'feed'")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), "Issue a control request to a running worker \n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [level] \n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cc := &client.ControlClient{Addr: *addr}
	if *secret != "" {
		key, err := hex.DecodeString(*secret)
		if err != nil {
			log.Fatalf("secret invalid hex: %v", err)
		}
		cc.User, cc.Pass = *user, auth.New(key, auth.DefaultMaxAge).PassFor(*user)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var err error
	switch *mode {
	case "queue":
		err = printQueue(ctx, cc)
	case "loglevel":
		if flag.NArg() == 0 {
			flag.Usage()
			os.Exit(1)
		}
		err = cc.SetLogLevel(ctx, flag.Arg(0))
		if err == nil {
			fmt.Fprintln(os.Stderr, "successfully set log level")
		}
	case "feed":
		err = cc.Feed(ctx, printSubmission)
	default:
		flag.Usage()
		os.Exit(1)
	}
	if err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

func opt(v *uint64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func printQueue(ctx context.Context, cc *client.ControlClient) error {
	status, err := cc.Queue(ctx)
	if err != nil {
		return fmt.Errorf("getting queue: %w", err)
	}
	if status.AckError != "" {
		log.Printf("acks unavailable: %v", status.AckError)
	}
	fmt.Printf("Buffered: %d\n\n", status.Buffered)
	fmt.Printf("Origin,NextSequence,Buffered,First,Last,Acked\n")
	for _, o := range status.Origins {
		printOrigin(o)
	}
	return nil
}

func printOrigin(o handlers.OriginStatus) {
	fmt.Printf("%s,%d,%d,%s,%s,%s\n", o.Origin, o.NextSequence, o.Buffered, opt(o.First), opt(o.Last), opt(o.Acked))
}

func printSubmission(s chain.Submission) error {
	var parts []string
	for _, o := range s.Origins {
		parts = append(parts, fmt.Sprintf("%s[%d..%d]", o.Origin, o.First, o.Last))
	}
	line := fmt.Sprintf("block %d: %s", s.BlockNumber, strings.Join(parts, " "))
	if len(s.Deferred) > 0 {
		line += fmt.Sprintf(" deferred=%s", strings.Join(s.Deferred, ","))
	}
	fmt.Println(line)
	return nil
}
