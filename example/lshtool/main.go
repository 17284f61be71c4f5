// main.go -- build and query a near-duplicate text index using lshcache
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.
//
// lshtool is an example of using lshcache.Cache: index a directory of
// text files and report all near-duplicate pairs, or check a single
// file against an existing index.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencoff/go-lshcache"

	flag "github.com/opencoff/pflag"
)

func main() {
	var numSeeds int
	var numBands int
	var ngram int
	var seed int64
	var minJaccard float64
	var dbFile string
	var check string

	usage := fmt.Sprintf("%s [options] DIR", os.Args[0])

	flag.IntVarP(&numSeeds, "seeds", "k", 200, "Use `K` MinHash seeds")
	flag.IntVarP(&numBands, "bands", "b", 50, "Split signatures into `B` bands")
	flag.IntVarP(&ngram, "ngram", "n", 5, "Use `N`-byte shingles")
	flag.Int64VarP(&seed, "random-state", "r", 42, "Seed the deterministic PRNG with `S`")
	flag.Float64VarP(&minJaccard, "min-jaccard", "j", 0.9, "Report pairs with estimated Jaccard above `T`")
	flag.StringVarP(&dbFile, "db", "d", "", "Use a durable sqlite index at `PATH` instead of an in-memory one")
	flag.StringVarP(&check, "check", "c", "", "Check `FILE` against the index instead of reporting all pairs")
	flag.Usage = func() {
		fmt.Printf("lshtool - find near-duplicate text files with LSH over MinHash\nUsage: %s\n", usage)
		flag.PrintDefaults()
	}

	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		die("No input directory!\nUsage: %s\n", usage)
	}
	dir := args[0]

	hasher, err := lshcache.NewMinHasherFromSeed(numSeeds, ngram, seed, lshcache.WithMemoize(1024))
	if err != nil {
		die("can't build hasher: %s", err)
	}

	var backend lshcache.Backend[string]
	ctx := context.Background()
	if dbFile != "" {
		sqliteBackend, err := lshcache.OpenSQLiteBackend[string](ctx, dbFile, numBands, hasher.Seeds(), ngram)
		if err != nil {
			die("can't open backend: %s", err)
		}
		// An existing file carries its own seeds/ngram in its meta row;
		// rebuild the hasher from those instead of trusting the flags
		// the caller happened to pass this run.
		if hasher, err = sqliteBackend.RebuildMinHasher(lshcache.WithMemoize(1024)); err != nil {
			die("can't rebuild hasher from %s: %s", dbFile, err)
		}
		backend = sqliteBackend
	} else {
		backend, err = lshcache.NewMemoryBackend[string](numBands, false)
	}
	if err != nil {
		die("can't open backend: %s", err)
	}
	defer backend.Close()

	cache, err := lshcache.NewCache[string](hasher, numBands, backend)
	if err != nil {
		die("can't build cache: %s", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		die("can't list %s: %s", dir, err)
	}

	n := 0
	for _, f := range files {
		body, err := os.ReadFile(f)
		if err != nil {
			warn("can't read %s: %s", f, err)
			continue
		}
		added, err := cache.Insert(ctx, body, f)
		if err != nil {
			warn("can't index %s: %s", f, err)
			continue
		}
		if added {
			n++
		}
	}
	fmt.Printf("+ indexed %d files from %s\n", n, dir)

	if check != "" {
		body, err := os.ReadFile(check)
		if err != nil {
			die("can't read %s: %s", check, err)
		}
		dups, err := cache.DuplicatesOf(ctx, body, minJaccard)
		if err != nil {
			die("can't query %s: %s", check, err)
		}
		for id := range dups {
			fmt.Println(id)
		}
		return
	}

	pairs, err := cache.AllDuplicatePairs(ctx, minJaccard)
	if err != nil {
		die("can't enumerate duplicate pairs: %s", err)
	}
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for _, p := range pairs {
		fmt.Fprintf(w, "%s\t%s\n", p.A, p.B)
	}
}

func die(f string, v ...interface{}) {
	warn(f, v...)
	os.Exit(1)
}

func warn(f string, v ...interface{}) {
	z := fmt.Sprintf("%s: %s", os.Args[0], f)
	s := fmt.Sprintf(z, v...)
	if n := len(s); s[n-1] != '\n' {
		s += "\n"
	}
	os.Stderr.WriteString(s)
	os.Stderr.Sync()
}
