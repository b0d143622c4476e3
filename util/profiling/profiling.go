package profiling

import (
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
	"github.com/tinycrypto/ledgerd/util/panics"
)

const readHeaderTimeout = 10 * time.Second

// Start starts the profiling server on listenAddr. It serves the prometheus
// metrics under /metrics and pprof under /debug/pprof. The returned server
// should be shut down by the caller.
func Start(listenAddr string, log *logger.Logger) *http.Server {
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           newHandler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	spawn := panics.GoroutineWrapperFunc(log)
	spawn(func() {
		log.Infof("Profile server listening on %s", listenAddr)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Profile server stopped: %s", err)
		}
	})
	return server
}

func newHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/", http.RedirectHandler("/debug/pprof/", http.StatusSeeOther))
	return mux
}
