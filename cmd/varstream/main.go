package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abiosoft/ishell"
	"go.bug.st/serial"
)

func main() {
	serialPort := flag.String("serial", "", "Serial port of the device (e.g. /dev/ttyACM0)")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	addr := flag.String("addr", "127.0.0.1:9000", "TCP address of memstreamd")
	flag.Parse()

	var rwc io.ReadWriteCloser
	var target string
	if *serialPort != "" {
		mode := &serial.Mode{
			BaudRate: *baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
		port, err := serial.Open(*serialPort, mode)
		if err != nil {
			log.Fatalf("open %s: %v", *serialPort, err)
		}
		rwc = port
		target = fmt.Sprintf("%s @ %d baud", *serialPort, *baud)
	} else {
		conn, err := net.Dial("tcp", *addr)
		if err != nil {
			log.Fatalf("dial %s: %v", *addr, err)
		}
		rwc = conn
		target = *addr
	}

	l := newLink(rwc)
	go l.readLoop()

	sh := ishell.New()
	sh.SetPrompt("varstream> ")
	sh.Printf("varstream connected to %s\n", target)
	addCommands(sh, l)

	if flag.NArg() > 0 {
		// One-shot mode: run the command, give replies a moment to land.
		if err := sh.Process(flag.Args()...); err != nil {
			log.Fatalln(err)
		}
		time.Sleep(300 * time.Millisecond)
		l.Close()
		return
	}
	sh.Run()
	l.Close()
}

func addCommands(sh *ishell.Shell, l *link) {
	sh.AddCmd(&ishell.Cmd{
		Name: "ping",
		Help: "check the device is alive",
		Func: func(c *ishell.Context) {
			l.sendOrErr(c, "PING")
		},
	})

	sh.AddCmd(&ishell.Cmd{
		Name: "stream",
		Help: "ADDR SIZE RATE  register a stream (0x-hex or decimal)",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 3 {
				c.Err(fmt.Errorf("usage: stream ADDR SIZE RATE"))
				return
			}
			addr, err := parseNum(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("bad addr %q", c.Args[0]))
				return
			}
			size, err := parseNum(c.Args[1])
			if err != nil {
				c.Err(fmt.Errorf("bad size %q", c.Args[1]))
				return
			}
			rate, err := parseNum(c.Args[2])
			if err != nil {
				c.Err(fmt.Errorf("bad rate %q", c.Args[2]))
				return
			}
			l.sendOrErr(c, fmt.Sprintf("STREAM 0x%08x %d %d", addr, size, rate))
		},
	})

	sh.AddCmd(&ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "NAME [SIZE [RATE]]  stream a published variable by name",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 || len(c.Args) > 3 {
				c.Err(fmt.Errorf("usage: watch NAME [SIZE [RATE]]"))
				return
			}
			name := c.Args[0]
			addr, ok := l.lookupVar(name)
			if !ok {
				c.Err(fmt.Errorf("unknown variable %q (no VARS seen yet; try list)", name))
				return
			}
			size, rate := uint32(4), uint32(10)
			var err error
			if len(c.Args) >= 2 {
				if size, err = parseNum(c.Args[1]); err != nil {
					c.Err(fmt.Errorf("bad size %q", c.Args[1]))
					return
				}
			}
			if len(c.Args) == 3 {
				if rate, err = parseNum(c.Args[2]); err != nil {
					c.Err(fmt.Errorf("bad rate %q", c.Args[2]))
					return
				}
			}
			l.watchVar(addr, name, size)
			l.sendOrErr(c, fmt.Sprintf("STREAM 0x%08x %d %d", addr, size, rate))
		},
	})

	sh.AddCmd(&ishell.Cmd{
		Name: "stop",
		Help: "ADDR|NAME  stop a stream",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: stop ADDR|NAME"))
				return
			}
			addr, err := parseNum(c.Args[0])
			if err != nil {
				var ok bool
				if addr, ok = l.lookupVar(c.Args[0]); !ok {
					c.Err(fmt.Errorf("unknown variable %q", c.Args[0]))
					return
				}
			}
			l.unwatch(addr)
			l.sendOrErr(c, fmt.Sprintf("STOP 0x%08x", addr))
		},
	})

	sh.AddCmd(&ishell.Cmd{
		Name:    "list",
		Aliases: []string{"ls"},
		Help:    "list published variables and enabled streams",
		Func: func(c *ishell.Context) {
			l.sendOrErr(c, "LIST")
		},
	})

	sh.AddCmd(&ishell.Cmd{
		Name: "raw",
		Help: "LINE  send a raw protocol line",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("usage: raw LINE"))
				return
			}
			l.sendOrErr(c, strings.Join(c.Args, " "))
		},
	})
}

// link owns the device connection: serialized writes, a reader goroutine
// printing every record, the variable table captured from VARS, and the
// watch table used to annotate DATA payloads.
type link struct {
	mu  sync.Mutex
	rwc io.ReadWriteCloser

	varsMu  sync.RWMutex
	vars    map[string]uint32
	watches map[uint32]watchInfo
}

type watchInfo struct {
	name string
	size uint32
}

func newLink(rwc io.ReadWriteCloser) *link {
	return &link{
		rwc:     rwc,
		vars:    make(map[string]uint32),
		watches: make(map[uint32]watchInfo),
	}
}

func (l *link) send(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.rwc.Write([]byte(line + "\n"))
	return err
}

func (l *link) sendOrErr(c *ishell.Context, line string) {
	if err := l.send(line); err != nil {
		c.Err(fmt.Errorf("send: %w", err))
	}
}

func (l *link) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rwc.Close()
}

// readLoop prints every incoming record, capturing VARS addresses and
// annotating DATA lines for watched variables.
func (l *link) readLoop() {
	scanner := bufio.NewScanner(l.rwc)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "VARS|"):
			l.captureVars(line)
			fmt.Println(line)
		case strings.HasPrefix(line, "DATA|"):
			fmt.Println(l.annotateData(line))
		default:
			fmt.Println(line)
		}
	}
}

func (l *link) lookupVar(name string) (uint32, bool) {
	l.varsMu.RLock()
	defer l.varsMu.RUnlock()
	addr, ok := l.vars[name]
	return addr, ok
}

func (l *link) watchVar(addr uint32, name string, size uint32) {
	l.varsMu.Lock()
	l.watches[addr] = watchInfo{name: name, size: size}
	l.varsMu.Unlock()
}

func (l *link) unwatch(addr uint32) {
	l.varsMu.Lock()
	delete(l.watches, addr)
	l.varsMu.Unlock()
}

func (l *link) captureVars(line string) {
	l.varsMu.Lock()
	defer l.varsMu.Unlock()
	for _, pair := range strings.Split(line, "|")[1:] {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		addr, err := parseNum(kv[1])
		if err != nil {
			continue
		}
		l.vars[kv[0]] = addr
	}
}

// annotateData appends "(name=value)" when the DATA line belongs to a
// watched variable and the payload has the watched width.
func (l *link) annotateData(line string) string {
	var addr uint32
	var payload []byte
	for _, field := range strings.Split(line, "|")[1:] {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "addr":
			a, err := parseNum(kv[1])
			if err != nil {
				return line
			}
			addr = a
		case "hex":
			p, err := hex.DecodeString(kv[1])
			if err != nil {
				return line
			}
			payload = p
		}
	}

	l.varsMu.RLock()
	w, ok := l.watches[addr]
	l.varsMu.RUnlock()
	if !ok || uint32(len(payload)) != w.size {
		return line
	}
	v, ok := decodeLE(payload)
	if !ok {
		return line
	}
	return fmt.Sprintf("%s  (%s=%d)", line, w.name, v)
}

// decodeLE interprets a 1/2/4/8-byte little-endian payload.
func decodeLE(b []byte) (uint64, bool) {
	switch len(b) {
	case 1, 2, 4, 8:
	default:
		return 0, false
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, true
}

// parseNum accepts 0x-prefixed hex or decimal, 32-bit.
func parseNum(s string) (uint32, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		return uint32(v), err
	}
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}
