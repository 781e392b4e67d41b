package cmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jmcleod/authseal/config"
	"github.com/jmcleod/authseal/internal/util"
	"github.com/jmcleod/authseal/oauth"
	"github.com/jmcleod/authseal/revocation"
	bboltrevocation "github.com/jmcleod/authseal/revocation/bbolt"
	redisrevocation "github.com/jmcleod/authseal/revocation/redis"
	"github.com/jmcleod/authseal/session"
	"github.com/jmcleod/authseal/singleuse"
	redissingleuse "github.com/jmcleod/authseal/singleuse/redis"
	"github.com/jmcleod/authseal/web"
	"github.com/jmcleod/authseal/webauthn"
)

var (
	port      int
	dataDir   string
	tlsCert   string
	tlsKey    string
	envPrefix string
	redisAddr string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the authentication server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(envPrefix)
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Revocation and ceremony state go to redis when an address is
		// given, otherwise revocation lives in a local bbolt file and
		// ceremony state stays in sealed cookies.
		var (
			revocations  revocation.Store
			storeFactory func(http.ResponseWriter, *http.Request) (singleuse.Store, error)
		)
		if redisAddr != "" {
			client := goredis.NewClient(&goredis.Options{Addr: redisAddr})
			defer client.Close()
			revocations = redisrevocation.New(client, cfg.SessionMaxAge)
			redisStore := redissingleuse.New(client)
			storeFactory = func(http.ResponseWriter, *http.Request) (singleuse.Store, error) {
				return redisStore, nil
			}
		} else {
			if err := os.MkdirAll(dataDir, 0o700); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			store, err := bboltrevocation.NewStoreFromFile(dataDir+"/revocation.db", nil)
			if err != nil {
				return fmt.Errorf("failed to open revocation store: %w", err)
			}
			defer store.Close()
			revocations = store
		}

		sessions, err := session.New(session.Config{
			Password:   cfg.SessionPassword,
			CookieName: cfg.SessionName,
			MaxAge:     cfg.SessionMaxAge,
			Revocation: revocations,
		})
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/_auth/session", sessions.Routes())

		if err := mountOAuth(r, cfg, sessions, storeFactory); err != nil {
			return err
		}
		if err := mountWebAuthn(r, cfg, sessions, storeFactory); err != nil {
			return err
		}

		webHandler, err := web.Handler()
		if err != nil {
			return err
		}
		r.Handle("/*", webHandler)

		var tlsConfig *tls.Config
		if tlsCert != "" && tlsKey != "" {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		} else {
			cert, err := util.GenerateSelfSignedCert()
			if err != nil {
				return fmt.Errorf("failed to generate self-signed certificate: %w", err)
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
			fmt.Println("Using self-signed runtime generated certificate for TLS")
		}

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d...\n", port)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// mountOAuth wires one flow handler per configured provider, plus an
// index the demo page uses to render sign-in buttons.
func mountOAuth(r chi.Router, cfg config.Config, sessions *session.Store, stores oauth.StoreFactory) error {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	r.Get("/auth/providers", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(names)
	})

	onSuccess := func(w http.ResponseWriter, r *http.Request, res oauth.Result) {
		_, err := sessions.Update(w, r, session.Session{
			session.FieldUser: res.User,
			"provider":        res.Provider,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}

	for _, name := range names {
		desc, ok := cfg.Descriptor(name)
		if !ok {
			return fmt.Errorf("provider %q has no usable descriptor", name)
		}
		var opts []oauth.FlowOption
		if stores != nil {
			opts = append(opts, oauth.WithStore(stores))
		}
		flow, err := oauth.New(desc, cfg.Credentials(name), cfg.SessionPassword, onSuccess, opts...)
		if err != nil {
			return err
		}
		r.Handle("/auth/"+name, flow)
	}
	return nil
}

// mountWebAuthn wires the passkey ceremonies backed by the in-memory
// demo credential store.
func mountWebAuthn(r chi.Router, cfg config.Config, sessions *session.Store, stores webauthn.StoreFactory) error {
	creds := newCredentialStore()
	wcfg := webauthn.Config{
		CookiePassword: cfg.SessionPassword,
		Stores:         stores,
	}

	registration, err := webauthn.NewRegistration(wcfg,
		func(w http.ResponseWriter, r *http.Request, user webauthn.User, cred webauthn.Credential) {
			creds.add(user.Name, cred)
			if _, err := sessions.Update(w, r, session.Session{
				session.FieldUser: map[string]any{"name": user.Name},
			}); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]bool{"registered": true})
		},
		webauthn.WithExcludeCredentials(creds.CredentialsFor))
	if err != nil {
		return err
	}

	authentication, err := webauthn.NewAuthentication(wcfg, creds,
		func(w http.ResponseWriter, r *http.Request, user webauthn.User, info webauthn.AuthenticationInfo) {
			creds.setCounter(user.Name, info.CredentialID, info.NewCounter)
			if _, err := sessions.Update(w, r, session.Session{
				session.FieldUser: map[string]any{"name": user.Name},
			}); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]bool{"loggedIn": true})
		})
	if err != nil {
		return err
	}

	r.Method(http.MethodPost, "/webauthn/register", registration)
	r.Method(http.MethodPost, "/webauthn/authenticate", authentication)
	return nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8443, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serverCmd.Flags().StringVar(&envPrefix, "env-prefix", config.DefaultPrefix, "Environment variable prefix")
	serverCmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for shared state (host:port)")
}
