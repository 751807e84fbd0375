package main

import (
	"flag"
	"net/http"
	_ "net/http/pprof"

	"github.com/golang/glog"
	"github.com/prebid/header-adapters/config"
	"github.com/prebid/header-adapters/router"
	"github.com/prebid/header-adapters/server"
	"github.com/spf13/viper"
)

// Rev holds binary revision string
// Set manually at build time using:
//
//	go build -ldflags "-X main.Rev=`git rev-parse --short HEAD`"
var Rev string

func main() {
	flag.Parse() // required for glog flags and testing package flags

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	if err := serve(Rev, cfg); err != nil {
		glog.Exitf("header-adapters failed: %v", err)
	}
}

const configFileName = "hadapters"

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

func serve(revision string, cfg *config.Configuration) error {
	r, err := router.New(cfg)
	if err != nil {
		return err
	}
	glog.Infof("header-adapters %s serving library %s %s", revision, cfg.Library.Name, cfg.Library.Version)

	corsRouter := router.SupportCORS(r)
	// pprof registers itself on the default mux, which backs the admin port.
	err = server.Listen(cfg, router.NoCache{Handler: corsRouter}, http.DefaultServeMux, r.MetricsEngine)
	r.Shutdown()
	return err
}
