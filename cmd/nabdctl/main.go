// Command nabdctl inspects and repairs queue regions.
//
// Usage:
//
//	nabdctl create -name /q [-capacity N] [-slot-size N]
//	nabdctl stats -name /q
//	nabdctl diagnose -name /q
//	nabdctl recover -name /q [-force]
//	nabdctl watch -name /q [-interval 1s]
//	nabdctl unlink -name /q
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nabdio/nabd-go/nabd"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: nabdctl <create|stats|diagnose|recover|watch|unlink> -name /queue [flags]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	name := fs.String("name", "", "region name, POSIX form (/queue)")
	capacity := fs.Uint64("capacity", 0, "slot count for create (0 = default)")
	slotSize := fs.Uint64("slot-size", 0, "slot byte size for create (0 = default)")
	force := fs.Bool("force", false, "force recovery, discarding pending messages")
	interval := fs.Duration("interval", time.Second, "sample interval for watch")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	if *name == "" {
		usage()
	}

	var err error
	switch cmd {
	case "create":
		err = runCreate(*name, *capacity, *slotSize)
	case "stats":
		err = runStats(*name)
	case "diagnose":
		err = runDiagnose(*name)
	case "recover":
		err = nabd.Recover(*name, *force)
		if err == nil {
			fmt.Println("recovered")
		}
	case "watch":
		err = runWatch(*name, *interval)
	case "unlink":
		err = nabd.Unlink(*name)
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "nabdctl %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func runCreate(name string, capacity, slotSize uint64) error {
	q, err := nabd.Open(name, capacity, slotSize, nabd.Create|nabd.Producer)
	if err != nil {
		return err
	}
	defer q.Close()
	fmt.Printf("created %s capacity=%d slot_size=%d\n", name, q.Capacity(), q.SlotSize())
	return nil
}

func runStats(name string) error {
	q, err := nabd.Open(name, 0, 0, nabd.Consumer)
	if err != nil {
		return err
	}
	defer q.Close()
	m, err := q.Metrics()
	if err != nil {
		return err
	}
	fmt.Print(nabd.FormatMetrics(m))
	for _, gs := range q.GroupStats() {
		fmt.Printf("  group %d: tail=%d lag=%d\n", gs.GroupID, gs.Tail, gs.Lag)
	}
	return nil
}

func runDiagnose(name string) error {
	diag, err := nabd.Diagnose(name)
	if err != nil {
		return err
	}
	fmt.Printf("state: %s\n", diag.State)
	fmt.Printf("magic_ok: %v  version_ok: %v\n", diag.MagicOK, diag.VersionOK)
	fmt.Printf("head: %d  tail: %d  pending: %d\n", diag.Head, diag.Tail, diag.Pending)
	fmt.Printf("capacity: %d  slot_size: %d\n", diag.Capacity, diag.SlotSize)
	return nil
}

func runWatch(name string, interval time.Duration) error {
	q, err := nabd.Open(name, 0, 0, nabd.Consumer)
	if err != nil {
		return err
	}
	defer q.Close()

	prev, err := q.TakeSnapshot()
	if err != nil {
		return err
	}
	for {
		time.Sleep(interval)
		curr, err := q.TakeSnapshot()
		if err != nil {
			return err
		}
		fmt.Printf("head=%d tail=%d pending=%d throughput=%d msg/s\n",
			curr.Head, curr.Tail, curr.Head-curr.Tail, nabd.CalcThroughput(&prev, &curr))
		prev = curr
	}
}
