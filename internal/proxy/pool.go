package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/shared"
)

// PoolOpts configures a [Pool].
type PoolOpts struct {
	Dir       string            // directory holding candidate and survivor files
	Protocols []string          // candidate list protocols, e.g. socks4, socks5
	Lists     map[string]string // protocol -> online candidate list URL
	Timeout   time.Duration     // per-check timeout
	Workers   int               // 0 means one per CPU
	Client    *http.Client      // client used to download candidate lists
	Logger    *log.Logger
}

// Pool manages candidate and survivor proxy lists for site modules.
type Pool struct {
	opts   PoolOpts
	logger *log.Logger
}

// NewPool creates a [Pool], defaulting unset options.
func NewPool(opts PoolOpts) *Pool {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Pool{opts: opts, logger: shared.WithLogger(opts.Logger, "component", "proxy")}
}

// CandidateFile returns the path of the candidate list for a protocol.
func (p *Pool) CandidateFile(protocol string) string {
	return filepath.Join(p.opts.Dir, "proxy_"+protocol)
}

// SurvivorFile returns the path of a module's validated proxy list.
func (p *Pool) SurvivorFile(module string) string {
	return filepath.Join(p.opts.Dir, module+"_correct_proxies")
}

// Validate issues one GET through candidate to targetURL and returns nil only on HTTP 200.
func (p *Pool) Validate(ctx context.Context, candidate Proxy, targetURL string) error {
	transport, err := Transport(candidate, p.opts.Timeout)
	if err != nil {
		return err
	}
	defer transport.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	resp, err := (&http.Client{Transport: transport}).Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", shared.ErrTimeout, candidate)
		}
		return fmt.Errorf("%w: %s: %v", shared.ErrFetchFailed, candidate, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", shared.ErrBadStatus, candidate, resp.StatusCode)
	}
	return nil
}

// Refresh validates all candidates in parallel and overwrites the module's survivor file.
//
// Survivors keep the order of candidates. Failed candidates are logged and skipped; an empty
// survivor list is written as an empty file and is not an error.
func (p *Pool) Refresh(ctx context.Context, module string, candidates []Proxy, targetURL string) ([]Proxy, error) {
	type job struct {
		idx int
		px  Proxy
	}

	jobs := make(chan job, len(candidates))
	ok := make([]bool, len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					return
				}
				if j.px.Protocol == "socks4" {
					p.logger.Warn("skipping unsupported proxy protocol", "proxy", j.px)
					continue
				}
				if err := p.Validate(ctx, j.px, targetURL); err != nil {
					p.logger.Debug("proxy rejected", "proxy", j.px, "error", err)
					continue
				}
				ok[j.idx] = true
			}
		}()
	}

	for i, c := range candidates {
		jobs <- job{idx: i, px: c}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	survivors := make([]Proxy, 0, len(candidates))
	for i, c := range candidates {
		if ok[i] {
			survivors = append(survivors, c)
		}
	}

	if err := p.write(p.SurvivorFile(module), survivors); err != nil {
		return nil, err
	}

	p.logger.Info("proxies checked", "module", module, "candidates", len(candidates), "survivors", len(survivors))
	return survivors, nil
}

// Load returns the module's last persisted survivors. A missing file yields an empty list.
func (p *Pool) Load(module string) ([]Proxy, error) {
	return p.read(p.SurvivorFile(module), "socks5")
}

// Candidates reads every configured candidate list. Missing lists are skipped.
func (p *Pool) Candidates() ([]Proxy, error) {
	var all []Proxy
	for _, protocol := range p.opts.Protocols {
		list, err := p.read(p.CandidateFile(protocol), protocol)
		if err != nil {
			return nil, err
		}
		all = append(all, list...)
	}
	return all, nil
}

// Download fetches the configured online candidate lists into the candidate files.
//
// A list that cannot be fetched is logged and kept as it was.
func (p *Pool) Download(ctx context.Context) (map[string]int, error) {
	if err := os.MkdirAll(p.opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}

	counts := make(map[string]int)
	for _, protocol := range p.opts.Protocols {
		src, ok := p.opts.Lists[protocol]
		if !ok || src == "" {
			continue
		}

		list, err := p.download(ctx, src, protocol)
		if err != nil {
			p.logger.Error("failed to download proxy list", "protocol", protocol, "url", src, "error", err)
			continue
		}
		if err := p.write(p.CandidateFile(protocol), list); err != nil {
			return counts, err
		}
		counts[protocol] = len(list)
	}
	return counts, nil
}

func (p *Pool) download(ctx context.Context, src, protocol string) ([]Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", shared.ErrBadStatus, resp.StatusCode)
	}
	return parseList(resp.Body, protocol, p.logger), nil
}

func (p *Pool) read(path, fallback string) ([]Proxy, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Proxy{}, nil
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	defer f.Close()
	return parseList(f, fallback, p.logger), nil
}

func (p *Pool) write(path string, list []Proxy) error {
	lines := make([]string, len(list))
	for i, px := range list {
		lines[i] = px.String()
	}
	if err := shared.WriteFileAtomic(path, []byte(strings.Join(lines, "\n"))); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	return nil
}

func parseList(r io.Reader, protocol string, logger *log.Logger) []Proxy {
	list := []Proxy{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		px, err := Parse(line, protocol)
		if err != nil {
			logger.Debug("skipping malformed proxy line", "line", line)
			continue
		}
		list = append(list, px)
	}
	return list
}
