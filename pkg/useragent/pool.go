package useragent

import (
	"crypto/rand"
	"math/big"
	"sync/atomic"
)

// Default is a set of current desktop browser User-Agents matching the TLS
// profiles offered by pkg/httpclient.
var Default = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:140.0) Gecko/20100101 Firefox/140.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:140.0) Gecko/20100101 Firefox/140.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.5 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36 Edg/138.0.0.0",
}

// Mode selects how Next walks the pool.
type Mode int

const (
	Sequential Mode = iota
	Random
)

// Pool hands out User-Agent strings for outbound page fetches.
type Pool struct {
	uas     []string
	mode    Mode
	counter atomic.Uint64
}

// NewPool copies uas into a new pool. An empty slice selects Default.
func NewPool(uas []string, mode Mode) *Pool {
	if len(uas) == 0 {
		uas = Default
	}
	return &Pool{
		uas:  append([]string(nil), uas...),
		mode: mode,
	}
}

// Next returns a User-Agent according to the pool's mode. Safe for concurrent use.
func (p *Pool) Next() string {
	if p.mode == Random {
		return p.random()
	}
	return p.sequential()
}

func (p *Pool) sequential() string {
	if len(p.uas) == 0 {
		return ""
	}
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

func (p *Pool) random() string {
	if len(p.uas) == 0 {
		return ""
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.sequential()
	}
	return p.uas[n.Int64()]
}

// Len reports how many User-Agents the pool rotates through.
func (p *Pool) Len() int { return len(p.uas) }
