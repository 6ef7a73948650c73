package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/config"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/engine"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/mem"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/monitor"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/recorder"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/sched"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/sim"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/slots"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/transport"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/web"
)

func main() {
	configPath := flag.String("config", "/etc/memstreamd/config.yaml", "Path to config file")
	serialPort := flag.String("serial", "", "Serial port (e.g. /dev/ttyACM0); overrides config")
	baud := flag.Int("baud", 0, "Serial baud rate; overrides config")
	listenAddr := flag.String("listen", "", "TCP listen address (e.g. :9000); overrides config")
	monitorAddr := flag.String("monitor", "", "Monitor listen address (e.g. :8080); overrides config")
	record := flag.Bool("record", false, "Force CSV capture on")
	writeConfig := flag.Bool("write-config", false, "Write the effective config to the config path and exit")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] memstreamd starting")

	cfg := config.LoadConfig(*configPath)

	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}
	if *baud > 0 {
		cfg.Serial.Baud = *baud
	}
	if *listenAddr != "" {
		cfg.TCP.Listen = *listenAddr
	}
	if *monitorAddr != "" {
		cfg.Monitor.Listen = *monitorAddr
	}
	if *record {
		cfg.Recorder.Enabled = true
	}

	if *writeConfig {
		if err := cfg.Save(); err != nil {
			log.Fatalf("[main] write config: %v", err)
		}
		log.Printf("[main] wrote config to %s", *configPath)
		return
	}

	// Context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	// Transport: a configured serial port wins, otherwise TCP.
	var tr transport.Transport
	var err error
	switch cfg.TransportKind() {
	case "serial":
		tr, err = transport.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			log.Fatalf("[main] serial: %v", err)
		}
	default:
		tcp, lerr := transport.ListenTCP(cfg.TCP.Listen)
		if lerr != nil {
			log.Fatalf("[main] tcp: %v", lerr)
		}
		log.Printf("[main] command link on tcp %s", tcp.Addr())
		tr = tcp
	}
	defer tr.Close()

	// Memory window, simulated firmware bank, slot registry
	region := mem.NewRegion(mem.DefaultWindow())
	acc := mem.NewAccessor(region)
	reg := slots.NewRegistry(acc)
	bank := sim.NewBank(region)
	if err := bank.Declare(reg); err != nil {
		log.Fatalf("[main] declare slots: %v", err)
	}

	eng := engine.New(acc, reg, tr, engine.Options{
		Version:      cfg.Engine.Version,
		Mode:         cfg.TransportKind(),
		Vars:         bank.Vars(),
		HeartbeatMS:  uint64(cfg.Engine.HeartbeatMS),
		SlotReportMS: uint64(cfg.Engine.SlotReportMS),
	})

	// Observers tap the record stream before the loop starts.
	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon = monitor.New(cfg.Monitor.Listen, reg, web.FS)
		eng.Tap(mon.Publish)
		go func() {
			if err := mon.Run(ctx); err != nil && err != http.ErrServerClosed {
				log.Printf("[main] monitor exited: %v", err)
			}
		}()
	}

	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		rec = recorder.New(cfg.Recorder.Dir, cfg.Recorder.MaxRows)
		eng.Tap(rec.Record)
		defer rec.Close()
	}

	// Single-goroutine loop: firmware bank first, then the engine pass,
	// then the slow observers.
	clock := sched.NewWallClock()
	loop := sched.NewLoop(clock, time.Duration(cfg.Engine.TickMS)*time.Millisecond)
	loop.Register(sched.Task{Name: "sim", Run: func(now uint64) {
		if err := bank.Update(now); err != nil {
			log.Printf("[main] sim update: %v", err)
		}
	}})
	loop.Register(sched.Task{Name: "engine", Run: eng.Tick})
	if mon != nil {
		loop.Register(sched.Task{Name: "status", PeriodMS: 1000, Run: func(now uint64) {
			mon.PushStatus(eng.Snapshot(now))
		}})
	}
	if rec != nil {
		loop.Register(sched.Task{Name: "flush", PeriodMS: 1000, Run: func(now uint64) {
			rec.Flush()
		}})
	}

	eng.Start(clock.NowMS())
	loop.Run(ctx)

	log.Println("[main] shutdown complete")
}
