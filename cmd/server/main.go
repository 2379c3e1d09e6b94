// fshare server: file sharing over the framed TCP protocol, opt QUIC and admin API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"dev.c0redev.fshare/internal/config"
	"dev.c0redev.fshare/internal/sandbox"
	"dev.c0redev.fshare/internal/server"
	"dev.c0redev.fshare/internal/server/api"
	"dev.c0redev.fshare/internal/server/auth"
	"dev.c0redev.fshare/internal/server/session"
	"dev.c0redev.fshare/internal/store"
	"dev.c0redev.fshare/internal/transport"
	"dev.c0redev.fshare/internal/xform"
)

func logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)
		if sw.code >= 400 {
			log.Printf("api %s %s %d", r.Method, r.URL.Path, sw.code)
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func main() {
	cfg, err := config.LoadServer(nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := sandbox.EnsureDirs(cfg.Root, cfg.UploadRoot); err != nil {
		log.Fatal(err)
	}
	root, err := sandbox.NewRoot(cfg.Root)
	if err != nil {
		log.Fatal(err)
	}
	uploads, err := sandbox.NewRoot(cfg.UploadRoot)
	if err != nil {
		log.Fatal(err)
	}

	env := &session.Env{
		Auth:        auth.NewFileStore(cfg.Users),
		Root:        root,
		Uploads:     uploads,
		Transform:   xform.NewXOR(cfg.XORKey),
		Locks:       sandbox.NewPathLocks(),
		Stats:       &session.Stats{},
		IdleTimeout: cfg.IdleTimeout,
	}
	var db *store.DB
	if cfg.DB != "" {
		db, err = store.Open(cfg.DB)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		env.Auth = auth.Chain{auth.NewFileStore(cfg.Users), auth.NewDBStore(db)}
		env.Recorder = db
		log.Println("sqlite store", cfg.DB)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(env, server.Options{Concurrent: cfg.Concurrent, MaxConns: cfg.MaxConns})
	var wg sync.WaitGroup

	if cfg.QUICAddr != "" {
		tlsConf, err := transport.SelfSignedTLS("localhost")
		if err != nil {
			log.Fatal("quic tls:", err)
		}
		ql, err := transport.Listen(cfg.QUICAddr, tlsConf)
		if err != nil {
			log.Fatal("quic:", err)
		}
		log.Println("quic listening on", cfg.QUICAddr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ctx, ql); err != nil {
				log.Println("quic:", err)
				stop()
			}
		}()
	}

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		api.New(db, srv.Stats(), cfg.AdminToken).Mount(mux)
		maxBodyBytes := int64(cfg.MaxBodyMB) * (1 << 20)
		limitBody := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
				next.ServeHTTP(w, r)
			})
		}
		httpSrv = &http.Server{Addr: cfg.HTTPAddr, Handler: logRequest(limitBody(api.CORS(mux)))}
		go func() {
			log.Println("admin api listening on", cfg.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Println("admin api:", err)
			}
		}()
	}

	log.Printf("serving %s (uploads %s) on %s, concurrent=%v", cfg.Root, cfg.UploadRoot, cfg.Addr, cfg.Concurrent)
	if err := srv.ListenAndServe(ctx, cfg.Addr); err != nil {
		log.Println("server:", err)
		stop()
	}
	wg.Wait()

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Println("admin api shutdown:", err)
		}
	}
	log.Println("server stopped")
}
