package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/simonaseno/nhanes/internal/adapters/xpt"
	"github.com/simonaseno/nhanes/internal/domain/table"
	"github.com/simonaseno/nhanes/pkg/logger"
)

// Origin server constants.
const (
	originReadHeaderTimeout = 5 * time.Second
	refusalStatus           = http.StatusInternalServerError
)

// Origin is an in-process file host that mimics the survey host's
// path layout. Registered files are served at
// /<year>/DataFiles/<file>.xpt; selected paths can be made to refuse
// with a fixed status instead.
type Origin struct {
	mu      sync.Mutex
	files   map[string][]byte
	refuse  map[string]int
	served  int
	refused int
	srv     *http.Server
}

// NewOrigin creates an empty origin.
func NewOrigin() *Origin {
	return &Origin{
		files:  make(map[string][]byte),
		refuse: make(map[string]int),
	}
}

func originPath(year, file string) string {
	return "/" + year + "/DataFiles/" + file + ".xpt"
}

// AddTable encodes tbl as a transport file and registers it.
func (o *Origin) AddTable(year, file string, tbl *table.Table) error {
	var buf bytes.Buffer
	if err := xpt.NewWriter(xpt.WithMemberName(file)).Write(&buf, tbl); err != nil {
		return fmt.Errorf("encode %s: %w", file, err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[originPath(year, file)] = buf.Bytes()
	return nil
}

// Refuse makes the path for year and file answer with the given
// status instead of a body.
func (o *Origin) Refuse(year, file string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refuse[originPath(year, file)] = status
}

// Start begins serving on an ephemeral loopback port and returns the
// origin's base URL.
func (o *Origin) Start() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}

	o.srv = &http.Server{
		Handler:           o,
		ReadHeaderTimeout: originReadHeaderTimeout,
	}
	go func() {
		if err := o.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get().Error(context.Background(), "origin serve failed", logger.Error(err))
		}
	}()

	return "http://" + ln.Addr().String(), nil
}

// Stop shuts the origin down, waiting for in-flight requests.
func (o *Origin) Stop(ctx context.Context) error {
	if o.srv == nil {
		return nil
	}
	return o.srv.Shutdown(ctx)
}

func (o *Origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	status, refusing := o.refuse[r.URL.Path]
	body, known := o.files[r.URL.Path]
	switch {
	case refusing:
		o.refused++
	case known:
		o.served++
	}
	o.mu.Unlock()

	if refusing {
		w.WriteHeader(status)
		return
	}
	if !known {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(body)
}

// Counts reports how many requests were served and refused so far.
func (o *Origin) Counts() (served, refused int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.served, o.refused
}
