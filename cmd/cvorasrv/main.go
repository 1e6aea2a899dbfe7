package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/prometheus/client_golang/prometheus"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "cvorasrv.yml"

	// EnvPrefix marks environment variables that override the config file
	EnvPrefix = "CVORASRV_"

	k = koanf.New(".")
)

// envKey maps CVORASRV_ADDR to the config key Addr.  Variables that do not
// name a top level key are ignored.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	for _, key := range k.Keys() {
		if strings.EqualFold(key, s) {
			return key
		}
	}
	return ""
}

func setupconfig() {
	k.Load(structs.Provider(defaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		log.Fatalf("error loading environment: %v", err)
	}
}

func root() {
	str := `cvorasrv exposes CVORA VME counter modules over HTTP
This enables a server-client architecture, and the clients can leverage the
excellent HTTP libraries for any programming language.

Usage:
	cvorasrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `cvorasrv is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used: one unit, LUN 0, at /cvora0.
The command mkconf generates the configuration file with the default values.

Top level scalar keys may be overridden from the environment, e.g.
CVORASRV_ADDR=:9000 or CVORASRV_MOCK=true.

Each unit is opened at /dev/<Driver>.<LUN>.  Opening is retried for up to
OpenRetrySec seconds, as device nodes can appear after the driver is loaded.
Mock: true serves simulated units and needs no hardware.

Every unit has its routes under its Endpoint, e.g. /cvora0/mode, and a
/lock route.  While locked, other requests get 423 (Locked); with
ReadOnlyLock, GET requests are still served.  /endpoints lists all routes,
/metrics serves prometheus metrics.

Sample memory is read at most once per SampleIntervalMs; requests in between
get 429 (Too Many Requests).  /wait blocks for the unit's Timeout.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("cvorasrv version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	mux, mods, err := BuildMux(c, reg)
	if err != nil {
		log.Fatal(err)
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGABRT, syscall.SIGTERM, os.Interrupt)
	go func() {
		<-ch
		for _, m := range mods {
			m.Close()
		}
		os.Exit(0)
	}()
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
