package example

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/reduct-os/kvfs/bonjour"
	"github.com/reduct-os/kvfs/config"
	"github.com/reduct-os/kvfs/fs"
	"github.com/reduct-os/kvfs/internal/abi"
	"github.com/reduct-os/kvfs/internal/simhost"
	"github.com/reduct-os/kvfs/pseudofs"
	"github.com/reduct-os/kvfs/stats"
	"github.com/reduct-os/kvfs/userfs"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Boot builds a system on a simulated host with the devices cfg asks for.
func Boot(cfg config.AppConfig) (*fs.System, *simhost.Host, error) {
	var acpi []byte
	if cfg.AcpiTable != "" {
		var err error
		if acpi, err = os.ReadFile(cfg.AcpiTable); err != nil {
			return nil, nil, fmt.Errorf("acpi table: %w", err)
		}
	}

	var fb *pseudofs.FbFS
	if cfg.FbWidth > 0 && cfg.FbHeight > 0 {
		var err error
		fb, err = pseudofs.NewFbFS(cfg.FbWidth, cfg.FbHeight, make([]byte, cfg.FbWidth*cfg.FbHeight*pseudofs.BytesPerPixel))
		if err != nil {
			return nil, nil, err
		}
	}

	host := simhost.NewHost()
	sys := fs.New(host, fs.Options{
		DriverTimeout:  cfg.DriverTimeout,
		ListBufferSize: cfg.ListBuffer,
		MaxListSize:    cfg.MaxList,
	})
	if err := sys.Boot(acpi, fb); err != nil {
		return nil, nil, err
	}
	return sys, host, nil
}

// StartDriver spawns a driver process serving dir under name and runs it in
// g until ctx is done. The process exits with its serve loop.
func StartDriver(ctx context.Context, g *errgroup.Group, sys *fs.System, host *simhost.Host, name, dir string) error {
	drv, err := NewPassthroughDriver(dir)
	if err != nil {
		return fmt.Errorf("driver %s: %w", name, err)
	}

	pid, mem := host.Spawn()
	sys.Admit(pid)
	addr, err := mem.Alloc(abi.CommandSize)
	if err != nil {
		drv.Close()
		return err
	}
	if err := sys.RegisterDriver(pid, name, addr); err != nil {
		drv.Close()
		return err
	}
	log.Infof("driver %q serving %s as %v", name, dir, pid)

	g.Go(func() error {
		return drv.Watch(ctx)
	})
	g.Go(func() error {
		err := userfs.Serve(ctx, mem, addr, drv, host.Yield)
		if exitErr := sys.Exit(pid); exitErr != nil {
			log.Errorf("driver %q exit: %v", name, exitErr)
		}
		host.Kill(pid)
		drv.Close()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return nil
}

func Run(cfg config.AppConfig, ds config.DSI) error {

	InitLogs(cfg)

	sys, host, err := Boot(cfg)
	if err != nil {
		log.Errorf("boot: %v", err)
		return err
	}

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(parent)

	names := ds.DriverNames()
	for _, name := range names {
		dir, err := ds.DriverDir(name)
		if err != nil {
			log.Errorf("driver %s: %v", name, err)
			continue
		}
		if err := StartDriver(ctx, g, sys, host, name, dir); err != nil {
			log.Errorf("%v", err)
		}
	}

	if cfg.StatsAddr != "" {
		srv := &http.Server{Addr: cfg.StatsAddr, Handler: stats.Handler()}
		log.Infof("Starting stats server at %s", cfg.StatsAddr)
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
		if cfg.Advertise {
			if err := bonjour.Advertise(cfg.StatsAddr, cfg.Hostname, cfg.Hostname, names); err != nil {
				log.Errorf("advertise: %v", err)
			}
		}
	}

	g.Go(func() error {
		WaitSignal(ctx)
		cancel()
		return nil
	})
	return g.Wait()
}

func InitLogs(cfg config.AppConfig) {
	log.Infof("debug level %v", cfg.Debug)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	if !cfg.Console {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28,   //days
			Compress:   true, // disabled by default
		})
	} else {
		log.SetOutput(os.Stdout)
	}
}

// WaitSignal returns on Ctrl+C or when ctx is done.
func WaitSignal(ctx context.Context) {
	handler := make(chan os.Signal, 1)
	signal.Notify(handler, os.Interrupt)
	defer signal.Stop(handler)

	select {
	case <-handler:
	case <-ctx.Done():
	}
	bonjour.Shutdown()
}
