package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "github.com/mortu/Controllable-Mobs-API"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under From from importing anything under To.
type rule struct {
	From []string
	To   []string
}

// The scheduler core stays independent of the reference host, the transport
// and the ambient stack wiring.
var rules = []rule{
	{
		From: []string{modulePath + "/attributes", modulePath + "/host", modulePath + "/action", modulePath + "/goal", modulePath + "/control"},
		To:   []string{modulePath + "/internal/sandbox", modulePath + "/internal/sim", modulePath + "/internal/net", modulePath + "/internal/app", "github.com/gorilla/websocket"},
	},
	{
		From: []string{modulePath + "/internal/sim"},
		To:   []string{modulePath + "/internal/net", modulePath + "/internal/app"},
	},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	pkgs, err := decodePackages(bytes.NewReader(output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
		os.Exit(1)
	}

	if violations := check(pkgs, rules); len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func decodePackages(r io.Reader) ([]packageInfo, error) {
	decoder := json.NewDecoder(r)
	var pkgs []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return pkgs, nil
			}
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
}

func check(pkgs []packageInfo, rules []rule) []string {
	var violations []string
	for _, pkg := range pkgs {
		for _, r := range rules {
			if !underAny(pkg.ImportPath, r.From) {
				continue
			}
			for _, imp := range pkg.Imports {
				if underAny(imp, r.To) {
					violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	sort.Strings(violations)
	return violations
}

func underAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
