// fshare client: list, get NAME, put PATH against an fshare server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dev.c0redev.fshare/internal/client"
	"dev.c0redev.fshare/internal/config"
	"dev.c0redev.fshare/internal/xform"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: client list | get NAME | put PATH | stats | transfers [LOGIN]")
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
	}
	cfg, err := config.LoadClient(nil)
	if err != nil {
		log.Fatal(err)
	}
	args := os.Args[1:]

	// admin API commands need no session
	switch args[0] {
	case "stats":
		st, err := client.FetchStats(cfg.API)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("sessions %d (active %d), auth failures %d\n", st.Sessions, st.Active, st.AuthFailures)
		fmt.Printf("transfers %d (failed %d), sent %d bytes, received %d bytes\n", st.Transfers, st.FailedXfers, st.BytesSent, st.BytesReceived)
		return
	case "transfers":
		login := ""
		if len(args) > 1 {
			login = args[1]
		}
		list, err := client.FetchTransfers(cfg.API, cfg.AdminToken, login, 50)
		if err != nil {
			log.Fatal(err)
		}
		for _, t := range list {
			status := "ok"
			if !t.OK {
				status = "failed: " + t.Error
			}
			fmt.Printf("%s %s %s %s %d/%d %s\n", t.CreatedAt, t.Login, t.Direction, t.Name, t.BytesMoved, t.TotalSize, status)
		}
		return
	}

	if cfg.User == "" || cfg.Password == "" {
		log.Fatal("FSHARE_USER and FSHARE_PASSWORD required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	t := xform.NewXOR(cfg.XORKey)
	var c *client.Client
	if cfg.UseQUIC {
		c, err = client.DialQUIC(dialCtx, cfg.Server, t)
	} else {
		c, err = client.Dial(dialCtx, cfg.Server, t)
	}
	if err != nil {
		log.Fatal(err)
	}
	// interrupt aborts an in-flight transfer
	context.AfterFunc(ctx, func() { c.Close() })

	if err := c.Auth(cfg.User, cfg.Password); err != nil {
		c.Close()
		if errors.Is(err, client.ErrAuthFailed) {
			log.Fatal("authentication failed")
		}
		log.Fatal(err)
	}

	if err := run(c, args); err != nil {
		c.Close()
		log.Fatal(err)
	}
	if err := c.Quit(); err != nil {
		log.Println("quit:", err)
	}
}

func run(c *client.Client, args []string) error {
	switch args[0] {
	case "list":
		names, err := c.List()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	case "get":
		if len(args) < 2 {
			usage()
		}
		c.Progress = func(done, total uint64) {
			fmt.Printf("\rDownloaded %d / %d bytes", done, total)
		}
		d, err := c.Get(args[1], args[1])
		fmt.Println()
		if err != nil {
			return err
		}
		fmt.Printf("saved %s (%d bytes)\n", args[1], d.TotalSize)
		return nil
	case "put":
		if len(args) < 2 {
			usage()
		}
		c.Progress = func(done, total uint64) {
			fmt.Printf("\rUploaded %d / %d bytes", done, total)
		}
		d, err := c.Put(args[1])
		fmt.Println()
		if err != nil {
			return err
		}
		fmt.Printf("uploaded %s as %s (%d bytes)\n", args[1], client.BaseName(args[1]), d.TotalSize)
		return nil
	}
	usage()
	return nil
}
