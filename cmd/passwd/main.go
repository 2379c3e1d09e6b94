// passwd: bcrypt a password for users.txt, the sqlite store, or the admin API.
//
//	passwd NAME PASSWORD        print "NAME:<bcrypt>" for users.txt
//	passwd -d NAME              delete NAME (needs FSHARE_DB or FSHARE_API)
//	FSHARE_DB=fshare.db passwd NAME PASSWORD
//	FSHARE_API=host:8081 FSHARE_ADMIN_TOKEN=... passwd NAME PASSWORD
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"dev.c0redev.fshare/internal/client"
	"dev.c0redev.fshare/internal/server/auth"
	"dev.c0redev.fshare/internal/store"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: passwd NAME PASSWORD | passwd -d NAME")
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	if len(os.Args) != 3 {
		usage()
	}
	apiURL, dbPath := os.Getenv("FSHARE_API"), os.Getenv("FSHARE_DB")

	if os.Args[1] == "-d" {
		name := os.Args[2]
		switch {
		case apiURL != "":
			if err := client.DeleteUser(apiURL, os.Getenv("FSHARE_ADMIN_TOKEN"), name); err != nil {
				log.Fatal(err)
			}
		case dbPath != "":
			db, err := store.Open(dbPath)
			if err != nil {
				log.Fatal(err)
			}
			defer db.Close()
			if err := db.DeleteUser(name); err != nil {
				log.Fatal(err)
			}
		default:
			log.Fatal("-d needs FSHARE_DB or FSHARE_API; for users.txt remove the line by hand")
		}
		log.Printf("user %s deleted", name)
		return
	}

	name, password := os.Args[1], os.Args[2]
	if name == "" || password == "" || strings.ContainsAny(name, " \t:") || strings.ContainsAny(password, " \t") {
		log.Fatal("name and password must be non-empty without whitespace (name also without ':')")
	}
	if apiURL != "" {
		if err := client.SetUser(apiURL, os.Getenv("FSHARE_ADMIN_TOKEN"), name, password); err != nil {
			log.Fatal(err)
		}
		log.Printf("user %s set via %s", name, client.NormalizeAPIURL(apiURL))
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatal(err)
	}
	if dbPath != "" {
		db, err := store.Open(dbPath)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		if err := db.UpsertUser(name, hash); err != nil {
			log.Fatal(err)
		}
		log.Printf("user %s stored in %s", name, dbPath)
		return
	}
	fmt.Printf("%s:%s\n", name, hash)
}
