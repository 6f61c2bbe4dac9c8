package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/edsrzf/mmap-go"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/xaionaro-go/vanityhash/pkg/vanity"
)

func fatalIfError(ctx context.Context, err error) {
	if err == nil {
		return
	}

	logger.FromCtx(ctx).Fatal(err)
	os.Exit(2)
}

func syntaxFatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "error: "+format+"\n\n", args...)
	_, _ = fmt.Fprintf(os.Stderr, "syntax: %s [options]\n\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(int(syscall.EINVAL))
}

func main() {
	defaults := vanity.DefaultSettings()

	logLevel := logger.LevelInfo
	flag.Var(&logLevel, "log-level", "")
	var cfg config
	flag.StringVar(&cfg.HashFuncName, "hash", vanity.DefaultHashFuncName, "hash function, one of: "+strings.Join(vanity.HashFuncNames(), ", "))
	flag.UintVar(&cfg.BufferLength, "buffer-length", defaults.BufferLength, "total size of the hashed message; a shorter prefix is padded with zeros; zero means the size of the prefix plus the counter width")
	flag.UintVar(&cfg.CounterWidth, "counter-width", defaults.CounterWidth, "size of the trailing part of the message which is incremented")
	flag.UintVar(&cfg.WorkerCount, "workers", defaults.WorkerCount, "amount of workers")
	flag.UintVar(&cfg.MaxParallel, "max-parallel", 0, "maximal amount of workers running at the same time (requires -stop-at-partition-end if less than -workers); zero means no limit")
	flag.StringVar(&cfg.PrefixHex, "prefix", hex.EncodeToString(defaults.Prefix), "the immutable beginning of the message, in hex")
	prefixFileFlag := flag.String("prefix-file", "", "path to a file with the immutable beginning of the message (overrides -prefix)")
	flag.StringVar(&cfg.TargetHex, "target", hex.EncodeToString(defaults.TargetPattern), "the bytes the digest should start with, in hex")
	flag.IntVar(&cfg.PartialLength, "partial", -1, "amount of leading target bytes to report progress on; -1 means all but the last one, zero disables the reports")
	flag.Uint64Var(&cfg.MaxGuesses, "max-guesses", 0, "stop after the given amount of hashes; zero means no limit")
	flag.BoolVar(&cfg.StopAtPartitionEnd, "stop-at-partition-end", false, "stop a worker when it reaches the start of the next worker's partition")
	netPprofFlag := flag.String("net-pprof", "", "")
	flag.Parse()

	if flag.NArg() != 0 {
		syntaxFatalf("expected no arguments, but received %d", flag.NArg())
	}

	ctx := logger.CtxWithLogger(context.Background(), logrus.Default().WithLevel(logLevel))
	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancelFn()

	if *netPprofFlag != "" {
		go func() {
			logger.FromCtx(ctx).Error(http.ListenAndServe(*netPprofFlag, nil))
		}()
	}

	if *prefixFileFlag != "" {
		var err error
		cfg.Prefix, err = fileToBytes(*prefixFileFlag)
		fatalIfError(ctx, err)
	}

	settings, err := cfg.Settings()
	if err != nil {
		syntaxFatalf("%v", err)
	}
	target := settings.TargetPattern

	result, err := vanity.Search(ctx, settings)
	fatalIfError(ctx, err)

	fmt.Println("Checked ", result.Guesses, " hash values in ", result.Elapsed)
	fmt.Println()
	switch result.Status {
	case vanity.FindStatusFound:
	case vanity.FindStatusCancelled:
		fmt.Printf("cancelled before finding data which hashes into %X... with %s\n", []byte(target), cfg.HashFuncName)
		return
	default:
		fmt.Printf("have not found data which hashes into %X... with %s\n", []byte(target), cfg.HashFuncName)
		return
	}

	fmt.Printf("FOUND %d BYTES (worker %d)\n", len(target), result.WorkerIndex)
	fmt.Println(result.Buffer)
	fmt.Println()
	fmt.Printf("the data is: %X\n", result.Buffer)
	fmt.Printf("its digest is: %X\n", result.Digest)
}

// fileToBytes returns the contents of the file by path `filePath`.
func fileToBytes(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf(`unable to open the prefix file "%v": %w`,
			filePath, err)
	}
	defer file.Close() // it was a read-only Open(), so we don't check the Close()

	// The mapping is never unmapped: the prefix is needed until the exit.
	contents, err := mmap.Map(file, mmap.RDONLY, 0)
	if err == nil {
		return contents, nil
	}

	// An error? (for example, mmap of an empty file fails) OK, let's try the usual way to read data:
	contents, err = io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf(`unable to access data of the prefix file "%v": %w`,
			filePath, err)
	}
	return contents, nil
}
