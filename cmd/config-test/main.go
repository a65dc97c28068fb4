package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"

	"github.com/chrissnell/quasar/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	same, err := run(os.Stdout, *yamlFile, *sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !same {
		os.Exit(2)
	}
}

// run loads both configurations and prints how they compare. It reports
// whether they are equivalent.
func run(w io.Writer, yamlFile, sqliteFile string) (bool, error) {
	fmt.Fprintln(w, "Configuration Comparison Test")
	fmt.Fprintln(w, "===========================")

	fmt.Fprintf(w, "Loading YAML configuration: %s\n", yamlFile)
	yamlConfig, err := config.NewYAMLProvider(yamlFile).LoadConfig()
	if err != nil {
		return false, fmt.Errorf("loading YAML config: %w", err)
	}

	fmt.Fprintf(w, "Loading SQLite configuration: %s\n", sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(sqliteFile)
	if err != nil {
		return false, fmt.Errorf("creating SQLite provider: %w", err)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		return false, fmt.Errorf("loading SQLite config: %w", err)
	}

	diffs := compareConfigs(yamlConfig, sqliteConfig)

	fmt.Fprintln(w, "\nComparison Results:")
	fmt.Fprintln(w, "==================")
	if len(diffs) == 0 {
		fmt.Fprintln(w, "✓ Configurations match")
		return true, nil
	}
	for _, d := range diffs {
		fmt.Fprintf(w, "✗ %s\n", d)
	}
	return false, nil
}

// compareConfigs lists the differences between two configurations. Controllers
// are matched by type so their order does not matter.
func compareConfigs(a, b *config.ConfigData) []string {
	var diffs []string

	if a.Logging != b.Logging {
		diffs = append(diffs, fmt.Sprintf("logging differs: %+v vs %+v", a.Logging, b.Logging))
	}

	left, right := controllersByType(a), controllersByType(b)
	types := make([]string, 0, len(left)+len(right))
	for t := range left {
		types = append(types, t)
	}
	for t := range right {
		if _, ok := left[t]; !ok {
			types = append(types, t)
		}
	}
	slices.Sort(types)

	for _, t := range types {
		l, inLeft := left[t]
		r, inRight := right[t]
		switch {
		case !inRight:
			diffs = append(diffs, fmt.Sprintf("controller %q only in YAML", t))
		case !inLeft:
			diffs = append(diffs, fmt.Sprintf("controller %q only in SQLite", t))
		case !controllersEqual(l, r):
			diffs = append(diffs, fmt.Sprintf("controller %q differs", t))
		}
	}
	return diffs
}

func controllersByType(c *config.ConfigData) map[string]config.ControllerData {
	m := make(map[string]config.ControllerData, len(c.Controllers))
	for _, con := range c.Controllers {
		m[con.Type] = con
	}
	return m
}

func controllersEqual(a, b config.ControllerData) bool {
	if !reflect.DeepEqual(a.ManagementAPI, b.ManagementAPI) {
		return false
	}
	if (a.RESTServer == nil) != (b.RESTServer == nil) {
		return false
	}
	if a.RESTServer == nil {
		return true
	}
	ra, rb := *a.RESTServer, *b.RESTServer
	if !slices.Equal(ra.CORSOrigins, rb.CORSOrigins) {
		return false
	}
	ra.CORSOrigins, rb.CORSOrigins = nil, nil
	return reflect.DeepEqual(ra, rb)
}
