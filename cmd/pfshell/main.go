// pfshell is an interactive REPL for exercising a running paged-file and
// heap-file manager by hand: create/open/close files, fix/unfix/alloc/
// dispose pages, and insert/get/delete/scan heap records.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"

	"github.com/pfdb/pfcore/internal/pf"
	"github.com/pfdb/pfcore/internal/pfconfig"
	"github.com/pfdb/pfcore/internal/record"
	"github.com/pfdb/pfcore/internal/rhf"
)

// ---- History (own file, same shape as the SQL client's) ----

type History struct {
	path  string
	lines []string
}

func NewHistory(path string) *History {
	return &History{path: path}
}

func (h *History) Load(max int) error {
	if h.path == "" {
		return nil
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		h.lines = append(h.lines, s)
		if max > 0 && len(h.lines) > max {
			h.lines = h.lines[len(h.lines)-max:]
		}
	}
	return sc.Err()
}

func (h *History) Append(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || h.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = fmt.Fprintln(f, line)
	h.lines = append(h.lines, line)
	return err
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".pfshell_history"
	}
	return filepath.Join(home, ".pfshell_history")
}

// ---- shell state ----

type shell struct {
	pfm     *pf.Manager
	rhfm    *rhf.Manager
	fds     map[string]int           // name -> open-file descriptor
	schemas map[string]*record.Codec // name -> bound row codec, set by "schema"
}

func newShell() *shell {
	disk := pf.NewDisk(afero.NewOsFs())
	pfm := pf.NewManager(disk)
	return &shell{
		pfm:     pfm,
		rhfm:    rhf.NewManager(pfm),
		fds:     make(map[string]int),
		schemas: make(map[string]*record.Codec),
	}
}

func (s *shell) run(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "create":
		s.need(args, 1, func() { s.checkPF(s.pfm.CreateFile(args[0])) })
	case "destroy":
		s.need(args, 1, func() { s.checkPF(s.pfm.DestroyFile(args[0])) })
	case "open":
		s.need(args, 2, func() {
			fd, err := s.pfm.OpenFile(args[0])
			if s.checkPF(err) {
				s.fds[args[1]] = fd
				fmt.Printf("opened %s as %s (fd=%d)\n", args[0], args[1], fd)
			}
		})
	case "close":
		s.need(args, 1, func() {
			fd, ok := s.resolve(args[0])
			if ok && s.checkPF(s.pfm.CloseFile(fd)) {
				delete(s.fds, args[0])
			}
		})
	case "alloc":
		s.need(args, 1, func() {
			fd, ok := s.resolve(args[0])
			if !ok {
				return
			}
			pn, _, err := s.pfm.Alloc(fd)
			if s.checkPF(err) {
				fmt.Printf("allocated page %d\n", pn)
			}
		})
	case "dispose":
		s.need(args, 2, func() {
			fd, ok := s.resolve(args[0])
			if !ok {
				return
			}
			pn := s.atoi(args[1])
			s.checkPF(s.pfm.Dispose(fd, int32(pn)))
		})
	case "fix":
		s.need(args, 2, func() {
			fd, ok := s.resolve(args[0])
			if !ok {
				return
			}
			pn := s.atoi(args[1])
			_, err := s.pfm.FixThis(fd, int32(pn))
			s.checkPF(err)
		})
	case "unfix":
		s.need(args, 2, func() {
			fd, ok := s.resolve(args[0])
			if !ok {
				return
			}
			pn := s.atoi(args[1])
			s.checkPF(s.pfm.Unfix(fd, int32(pn), false))
		})
	case "stats":
		st := s.pfm.GetStats()
		fmt.Printf("logical_reads=%d physical_reads=%d physical_writes=%d\n",
			st.LogicalReads, st.PhysicalReads, st.PhysicalWrites)
	case "schema":
		s.need(args, 2, func() {
			cols, ok := parseColumns(args[1:])
			if !ok {
				return
			}
			s.schemas[args[0]] = record.NewCodec(record.Schema{Cols: cols})
			fmt.Printf("schema for %s: %d column(s)\n", args[0], len(cols))
		})
	case "insert-row":
		s.need(args, 2, func() {
			fd, ok := s.resolve(args[0])
			if !ok {
				return
			}
			codec, ok := s.schemaFor(args[0])
			if !ok {
				return
			}
			values, ok := s.parseRowValues(codec.Schema(), args[1:])
			if !ok {
				return
			}
			buf, err := codec.Encode(values)
			if err != nil {
				fmt.Printf("error: %s\n", err)
				return
			}
			rid, rerr := s.rhfm.InsertRecord(fd, buf)
			if s.checkRHF(rerr) {
				fmt.Printf("rid=%d:%d\n", rid.PageNum, rid.SlotNum)
			}
		})
	case "get-row":
		s.need(args, 2, func() {
			fd, ok := s.resolve(args[0])
			if !ok {
				return
			}
			codec, ok := s.schemaFor(args[0])
			if !ok {
				return
			}
			rid, ok := s.parseRID(args[1])
			if !ok {
				return
			}
			buf, err := s.rhfm.GetRecord(fd, rid)
			if !s.checkRHF(err) {
				return
			}
			values, derr := codec.Decode(buf)
			if derr != nil {
				fmt.Printf("error: %s\n", derr)
				return
			}
			fmt.Println(formatRowValues(values))
		})
	case "insert":
		s.need(args, 2, func() {
			fd, ok := s.resolve(args[0])
			if !ok {
				return
			}
			rid, err := s.rhfm.InsertRecord(fd, []byte(strings.Join(args[1:], " ")))
			if s.checkRHF(err) {
				fmt.Printf("rid=%d:%d\n", rid.PageNum, rid.SlotNum)
			}
		})
	case "get":
		s.need(args, 2, func() {
			fd, ok := s.resolve(args[0])
			if !ok {
				return
			}
			rid, ok := s.parseRID(args[1])
			if !ok {
				return
			}
			rec, err := s.rhfm.GetRecord(fd, rid)
			if s.checkRHF(err) {
				fmt.Printf("%s\n", string(rec))
			}
		})
	case "delete":
		s.need(args, 2, func() {
			fd, ok := s.resolve(args[0])
			if !ok {
				return
			}
			rid, ok := s.parseRID(args[1])
			if !ok {
				return
			}
			s.checkRHF(s.rhfm.DeleteRecord(fd, rid))
		})
	case "scan":
		s.need(args, 1, func() {
			fd, ok := s.resolve(args[0])
			if !ok {
				return
			}
			sc := s.rhfm.StartScan(fd)
			count := 0
			for {
				rec, rid, err := sc.Next()
				if err != nil {
					break
				}
				fmt.Printf("%d:%d  %s\n", rid.PageNum, rid.SlotNum, string(rec))
				count++
			}
			_ = sc.End()
			fmt.Printf("(%d rows)\n", count)
		})
	case "\\help", "help":
		printHelp()
	default:
		fmt.Printf("unknown command: %s (try \\help)\n", cmd)
	}
}

func (s *shell) need(args []string, n int, f func()) {
	if len(args) < n {
		fmt.Printf("expected at least %d argument(s)\n", n)
		return
	}
	f()
}

func (s *shell) resolve(name string) (int, bool) {
	fd, ok := s.fds[name]
	if !ok {
		fmt.Printf("no open file named %q\n", name)
	}
	return fd, ok
}

func (s *shell) atoi(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func (s *shell) parseRID(v string) (rhf.RID, bool) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		fmt.Println("rid must be page:slot")
		return rhf.RID{}, false
	}
	p, err1 := strconv.Atoi(parts[0])
	sl, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		fmt.Println("rid must be page:slot, both integers")
		return rhf.RID{}, false
	}
	return rhf.RID{PageNum: int32(p), SlotNum: int32(sl)}, true
}

func (s *shell) schemaFor(name string) (*record.Codec, bool) {
	codec, ok := s.schemas[name]
	if !ok {
		fmt.Printf("no schema bound to %q (use schema first)\n", name)
	}
	return codec, ok
}

// parseColumns parses "name:type[:null]" tokens into Column definitions.
func parseColumns(tokens []string) ([]record.Column, bool) {
	cols := make([]record.Column, 0, len(tokens))
	for _, tok := range tokens {
		parts := strings.Split(tok, ":")
		if len(parts) < 2 {
			fmt.Printf("bad column spec %q, want name:type[:null]\n", tok)
			return nil, false
		}
		ct, ok := parseColumnType(parts[1])
		if !ok {
			fmt.Printf("unknown column type %q\n", parts[1])
			return nil, false
		}
		nullable := len(parts) >= 3 && parts[2] == "null"
		cols = append(cols, record.Column{Name: parts[0], Type: ct, Nullable: nullable})
	}
	return cols, true
}

func parseColumnType(s string) (record.ColumnType, bool) {
	switch s {
	case "int32":
		return record.ColInt32, true
	case "int64":
		return record.ColInt64, true
	case "bool":
		return record.ColBool, true
	case "float64":
		return record.ColFloat64, true
	case "text":
		return record.ColText, true
	case "bytes":
		return record.ColBytes, true
	default:
		return 0, false
	}
}

// parseRowValues parses one token per schema column into the Go value
// Codec.Encode expects for that column's type. The token "NULL" maps to nil.
func (s *shell) parseRowValues(schema record.Schema, tokens []string) ([]any, bool) {
	if len(tokens) != schema.NumCols() {
		fmt.Printf("expected %d value(s), got %d\n", schema.NumCols(), len(tokens))
		return nil, false
	}
	values := make([]any, len(tokens))
	for i, col := range schema.Cols {
		tok := tokens[i]
		if tok == "NULL" {
			values[i] = nil
			continue
		}
		v, err := parseFieldValue(col.Type, tok)
		if err != nil {
			fmt.Printf("column %s: %s\n", col.Name, err)
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func parseFieldValue(ct record.ColumnType, tok string) (any, error) {
	switch ct {
	case record.ColInt32:
		n, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	case record.ColInt64:
		return strconv.ParseInt(tok, 10, 64)
	case record.ColBool:
		return strconv.ParseBool(tok)
	case record.ColFloat64:
		return strconv.ParseFloat(tok, 64)
	case record.ColText:
		return tok, nil
	case record.ColBytes:
		return []byte(tok), nil
	default:
		return nil, fmt.Errorf("unsupported column type")
	}
}

func formatRowValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			parts[i] = "NULL"
			continue
		}
		if b, ok := v.([]byte); ok {
			parts[i] = string(b)
			continue
		}
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, " | ")
}

func (s *shell) checkPF(err *pf.Error) bool {
	if err != nil {
		fmt.Printf("error: %s (code %d)\n", err.Msg, err.Code)
		return false
	}
	return true
}

func (s *shell) checkRHF(err *rhf.Error) bool {
	if err != nil {
		fmt.Printf("error: %s (code %d)\n", err.Msg, err.Code)
		return false
	}
	return true
}

func printHelp() {
	fmt.Println(`commands:
  create <path>                 create a new paged file
  destroy <path>                remove a paged file from disk
  open <path> <name>            open a file, bind it to <name>
  close <name>
  alloc <name>                  allocate a page
  dispose <name> <page>         free a page
  fix <name> <page>             fix a page (content not printed)
  unfix <name> <page>           unfix a page
  stats                         print buffer pool counters
  insert <name> <text...>       insert a heap record
  get <name> <page:slot>
  delete <name> <page:slot>
  scan <name>                   sequential scan of all live records
  schema <name> <col:type[:null]>...   bind a row schema to an open file
                                 types: int32 int64 bool float64 text bytes
  insert-row <name> <value...>  encode values against the bound schema, insert
  get-row <name> <page:slot>    fetch a record and decode it via the schema
  \q | quit | exit               quit`)
}

func main() {
	var (
		cfgPath  = flag.String("config", "", "optional YAML config (buffer.size, buffer.strategy)")
		dir      = flag.String("dir", ".", "working directory for file paths")
		histPath = flag.String("history", defaultHistoryPath(), "history file path")
	)
	flag.Parse()

	effectiveDir := *dir
	var cfg *pfconfig.Config
	if *cfgPath != "" {
		var err error
		cfg, err = pfconfig.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		if cfg.Storage.Dir != "" {
			effectiveDir = cfg.Storage.Dir
		}
	}
	if effectiveDir != "." {
		if err := os.MkdirAll(effectiveDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "storage dir: %v\n", err)
			os.Exit(1)
		}
		if err := os.Chdir(effectiveDir); err != nil {
			fmt.Fprintf(os.Stderr, "storage dir: %v\n", err)
			os.Exit(1)
		}
	}

	s := newShell()
	if cfg != nil {
		cfg.Apply(s.pfm)
	}

	h := NewHistory(*histPath)
	_ = h.Load(2000)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pf> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	fmt.Println("pfshell ready. type \\help for commands.")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "\\q" || line == "quit" || line == "exit" {
			return
		}
		_ = h.Append(line)
		_ = rl.SaveHistory(line)
		s.run(line)
	}
}
