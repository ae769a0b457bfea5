// pfworkload drives a random-access read/write workload against a paged
// file and reports buffer pool hit rates in CSV form, one row per run:
//
//	strategy,write_mix,logical,physical_reads,physical_writes,total_physical,hit_rate
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/spf13/afero"

	"github.com/pfdb/pfcore/internal/pf"
	"github.com/pfdb/pfcore/internal/pfconfig"
)

const (
	testFile      = "workload_file"
	bufferSize    = 20
	fileSize      = 100
	totalAccesses = 10000
)

func printStats(strategyName string, writeMix float64, st pf.Stats) {
	totalPhysical := st.PhysicalReads + st.PhysicalWrites
	hitRate := 0.0
	if st.LogicalReads > 0 {
		hitRate = 100.0 * float64(st.LogicalReads-st.PhysicalReads) / float64(st.LogicalReads)
	}
	fmt.Printf("%s,%.2f,%d,%d,%d,%d,%.2f\n",
		strategyName, writeMix, st.LogicalReads, st.PhysicalReads, st.PhysicalWrites, totalPhysical, hitRate)
}

func run(strategyName string, writeMix float64, cfgPath string) error {
	strategy, ok := pf.ParseStrategy(strategyName)
	if !ok {
		return fmt.Errorf("strategy must be lru or mru, got %q", strategyName)
	}
	if writeMix < 0.0 || writeMix > 1.0 {
		return fmt.Errorf("write mix must be between 0.0 and 1.0, got %v", writeMix)
	}

	disk := pf.NewDisk(afero.NewOsFs())
	m := pf.NewManager(disk)
	m.SetBufferSize(bufferSize)
	m.SetStrategy(strategy)

	if cfgPath != "" {
		cfg, err := pfconfig.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg.Apply(m)
	}

	_ = m.DestroyFile(testFile)
	if err := m.CreateFile(testFile); err != nil {
		return fmt.Errorf("create file: %s", err.Msg)
	}
	fd, err := m.OpenFile(testFile)
	if err != nil {
		return fmt.Errorf("open file: %s", err.Msg)
	}

	for i := 0; i < fileSize; i++ {
		pn, buf, aerr := m.Alloc(fd)
		if aerr != nil {
			return fmt.Errorf("alloc page: %s", aerr.Msg)
		}
		buf[0] = byte('A' + (i % 26))
		if uerr := m.Unfix(fd, pn, true); uerr != nil {
			return fmt.Errorf("unfix page: %s", uerr.Msg)
		}
	}
	if err := m.CloseFile(fd); err != nil {
		return fmt.Errorf("close file: %s", err.Msg)
	}

	fd, err = m.OpenFile(testFile)
	if err != nil {
		return fmt.Errorf("reopen file: %s", err.Msg)
	}
	m.ResetStats()

	for i := 0; i < totalAccesses; i++ {
		pageNum := int32(rand.Intn(fileSize))
		opType := rand.Float64()

		if _, err := m.FixThis(fd, pageNum); err != nil {
			return fmt.Errorf("fix page %d: %s", pageNum, err.Msg)
		}
		if opType < writeMix {
			if err := m.MarkDirty(fd, pageNum); err != nil {
				return fmt.Errorf("mark dirty %d: %s", pageNum, err.Msg)
			}
			_ = m.Unfix(fd, pageNum, true)
		} else {
			_ = m.Unfix(fd, pageNum, false)
		}
	}

	printStats(strategyName, writeMix, m.GetStats())

	_ = m.CloseFile(fd)
	_ = m.DestroyFile(testFile)
	return nil
}

func main() {
	cfgPath := flag.String("config", "", "optional YAML config overriding buffer size/strategy")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <strategy: lru|mru> <write_mix: 0.0-1.0>\n", os.Args[0])
		os.Exit(1)
	}

	writeMix, err := strconv.ParseFloat(flag.Arg(1), 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid write mix: %v\n", err)
		os.Exit(1)
	}

	if err := run(flag.Arg(0), writeMix, *cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
