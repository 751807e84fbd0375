package router

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/prebid/header-adapters/config"
	"github.com/prebid/header-adapters/endpoints"
	"github.com/prebid/header-adapters/errortypes"
	"github.com/prebid/header-adapters/exchange"
	metricsConf "github.com/prebid/header-adapters/metrics/config"
	"github.com/prebid/header-adapters/openrtb_ext"
	"github.com/prebid/header-adapters/static"
	"github.com/rs/cors"
)

// NewJsonDirectoryServer is used to serve .json files from a directory as a single blob. For example,
// given a directory containing the files "a.json" and "b.json", this returns a Handle which serves JSON like:
//
//	{
//	  "a": { ... content from the file a.json ... },
//	  "b": { ... content from the file b.json ... }
//	}
//
// This function stores the file contents in memory, and should not be used on large directories.
// If the root directory, or any of the files in it, cannot be read, then the program will exit.
func NewJsonDirectoryServer(fsys fs.FS, schemaDirectory string, validator openrtb_ext.BidderParamValidator) httprouter.Handle {
	files, err := fs.ReadDir(fsys, schemaDirectory)
	if err != nil {
		glog.Fatalf("Failed to read directory %s: %v", schemaDirectory, err)
	}

	data := make(map[string]json.RawMessage, len(files))
	for _, file := range files {
		bidder := strings.TrimSuffix(file.Name(), ".json")
		bidderName, isValid := openrtb_ext.NormalizeBidderName(bidder)
		if !isValid {
			glog.Fatalf("Schema exists for an unknown bidder: %s", bidder)
		}
		data[bidder] = json.RawMessage(validator.Schema(bidderName))
	}

	response, err := json.Marshal(data)
	if err != nil {
		glog.Fatalf("Failed to marshal bidder param JSON-schema: %v", err)
	}

	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Add("Content-Type", "application/json")
		w.Write(response)
	}
}

type NoCache struct {
	Handler http.Handler
}

func (m NoCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Add("Pragma", "no-cache")
	w.Header().Add("Expires", "0")
	m.Handler.ServeHTTP(w, r)
}

type Router struct {
	*httprouter.Router
	MetricsEngine   *metricsConf.DetailedMetricsEngine
	ParamsValidator openrtb_ext.BidderParamValidator
	Shutdown        func()
}

func getTransport(cfg *config.Configuration) *http.Transport {
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		MaxConnsPerHost: cfg.Client.MaxConnsPerHost,
		IdleConnTimeout: time.Duration(cfg.Client.IdleConnTimeout) * time.Second,
	}

	if cfg.Client.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.Client.MaxIdleConns
	}

	if cfg.Client.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = cfg.Client.MaxIdleConnsPerHost
	}

	return transport
}

// New builds the metrics engine, the adapters and every route of the sandbox service.
func New(cfg *config.Configuration) (r *Router, err error) {
	r = &Router{
		Router: httprouter.New(),
	}

	transport := getTransport(cfg)
	generalHttpClient := &http.Client{
		Transport: transport,
	}
	r.Shutdown = transport.CloseIdleConnections

	r.MetricsEngine = metricsConf.NewMetricsEngine(cfg, openrtb_ext.CoreBidderNames())

	r.ParamsValidator, err = openrtb_ext.NewBidderParamsValidator(static.BidderParams, static.BidderParamsDir)
	if err != nil {
		return nil, fmt.Errorf("Failed to create the bidder params validator. %v", err)
	}

	bidders, adaptersErrs := exchange.BuildAdapters(generalHttpClient, cfg, r.MetricsEngine, r.ParamsValidator)
	if len(adaptersErrs) > 0 {
		return nil, errortypes.NewAggregateErrors("Failed to initialize adapters", adaptersErrs)
	}
	glog.Infof("Active bidders: %v", exchange.GetActiveBidders(cfg.Adapters))

	adapterEndpoints := endpoints.NewAdapterEndpoints(bidders, r.MetricsEngine)
	r.POST("/adapters/:bidder/validate", adapterEndpoints.Validate)
	r.POST("/adapters/:bidder/build", adapterEndpoints.Build)
	r.POST("/adapters/:bidder/interpret", adapterEndpoints.Interpret)
	r.POST("/adapters/:bidder/usersync", adapterEndpoints.UserSync)
	r.POST("/adapters/:bidder/callbids", adapterEndpoints.CallBids)
	r.GET("/bidders/params", NewJsonDirectoryServer(static.BidderParams, static.BidderParamsDir, r.ParamsValidator))
	r.GET("/status", endpoints.NewStatusEndpoint(cfg.StatusResponse))

	return r, nil
}

// These CORS options allow any origin, with credentials, so that a publisher page can call
// the sandbox straight from the browser.
//
// For more info, see:
//
// - https://github.com/rs/cors/issues/55
// - https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS/Errors/CORSNotSupportingCredentials
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowCredentials: true,
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}
