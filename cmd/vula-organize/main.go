// Command vula-organize is the daemon: it loads the persisted state and
// key files, wires the transactional engine to the organize policy layer
// and the WireGuard/hosts/etcd collaborators, exposes the RPC surface,
// and runs the EXPIRE_TICK ticker. Grounded on
// coredns-plugin/valon/valon.go's Init() (load config, build
// collaborators, start background loops) and valonctl/cmd/root.go's
// config-then-flags wiring, generalized from a CoreDNS plugin's setup
// hook to a standalone daemon's main().
package main

import (
	"encoding/base64"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/vula-mesh/vula/internal/collab"
	"github.com/vula-mesh/vula/internal/config"
	"github.com/vula-mesh/vula/internal/engine"
	"github.com/vula-mesh/vula/internal/keys"
	"github.com/vula-mesh/vula/internal/organize"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/rpcserver"
	"github.com/vula-mesh/vula/internal/state"
	"github.com/vula-mesh/vula/internal/vlog"
)

func main() {
	cfgPath := flag.String("config", config.DefaultConfigPath, "path to organize.yml")
	flag.Parse()

	logger := vlog.New("vula-organize")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	kf, err := keys.LoadOrGenerate(cfg.State.KeyFile)
	if err != nil {
		log.Fatalf("load keys: %v", err)
	}

	initial, err := loadOrInitState(cfg.State.StateFile)
	if err != nil {
		log.Fatalf("load state: %v", err)
	}

	persist := func(s *state.State) error {
		return state.Dump(cfg.State.StateFile, s)
	}

	// eng is captured by reference in the stateFn closure below before it's
	// assigned its final value, so collab's collaborators always read
	// whichever Engine main() ends up constructing.
	var eng *engine.Engine
	stateFn := func() *state.State { return eng.State() }

	var mirror *collab.EtcdMirror
	if cfg.Etcd != nil {
		ourVK := base64.RawStdEncoding.EncodeToString(kf.EdPub)
		mirror, err = collab.NewEtcdMirror(cfg.Etcd.Endpoints, ourVK)
		if err != nil {
			log.Fatalf("connect etcd: %v", err)
		}
		defer mirror.Close()
	}

	wg, err := collab.NewWireGuard(cfg.WireGuard.Interface, stateFn)
	if err != nil {
		log.Fatalf("open wireguard device: %v", err)
	}
	defer wg.Close()

	hosts := collab.NewHosts(cfg.Hosts.Path, stateFn)
	collaborator := collab.New(wg, hosts, mirror)

	eng = engine.New(initial, collaborator, persist)

	// When prefs.record_events is set, append every committed Result onto
	// the live state's EventLog (not persisted: the state file schema in
	// internal/state/persist.go has no event-log field), so ReplayFromLog can
	// reconstruct state from this process's run without re-deriving it
	// from organize's rules.
	if on, _ := initial.Prefs.GetBool(prefs.RecordEvents); on {
		eng.SetRecorder(func(res *state.Result) {
			if res.Err != nil {
				return
			}
			live := eng.State()
			live.EventLog = append(live.EventLog, res)
		})
	}

	org := organize.New(eng)
	org.SetDescriptorBuilder(organize.DescriptorBuilder(kf, organize.Identity{
		Hostname:      cfg.Identity.Hostname,
		Port:          cfg.Identity.Port,
		DescriptorTTL: cfg.Identity.DescriptorTTL.Duration(),
	}, time.Now))

	server := rpcserver.New(org)
	httpSrv := &http.Server{Addr: cfg.RPC.ListenAddr, Handler: server}

	go runExpireTicker(org, cfg.Hosts.ExpireInterval.Duration(), logger)

	logger.Printf("listening on %s", cfg.RPC.ListenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("rpc server: %v", err)
	}
}

func loadOrInitState(path string) (*state.State, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return state.New(), nil
	}
	return state.Load(path)
}

func runExpireTicker(org *organize.Organizer, interval time.Duration, logger *vlog.Logger) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		res := org.ExpireTick(time.Now())
		if res.Err != nil {
			logger.Printf("expire_tick: %v", res.Err)
		}
	}
}
