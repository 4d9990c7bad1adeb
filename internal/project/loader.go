// Package project autodetects compiled contract artifacts (forge and
// hardhat layouts) and exposes their ABIs for session registration.
package project

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/goccy/go-json"
)

// Contract is one compiled artifact.
type Contract struct {
	Name string
	ABI  *gethabi.ABI
}

// Detect scans a project root for a recognized artifact directory and
// loads every contract ABI it finds. An unrecognized root returns an
// empty slice.
func Detect(root string) ([]Contract, error) {
	if _, err := os.Stat(filepath.Join(root, "out")); err == nil {
		if _, err := os.Stat(filepath.Join(root, "foundry.toml")); err == nil {
			return loadForge(filepath.Join(root, "out"))
		}
	}
	if _, err := os.Stat(filepath.Join(root, "artifacts", "contracts")); err == nil {
		return loadHardhat(filepath.Join(root, "artifacts", "contracts"))
	}
	return nil, nil
}

type artifact struct {
	ABI          json.RawMessage `json:"abi"`
	ContractName string          `json:"contractName"`
}

func parseArtifact(path string) (*gethabi.ABI, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	var parsed artifact
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, "", err
	}
	if len(parsed.ABI) == 0 || string(parsed.ABI) == "null" {
		return nil, "", nil
	}
	contractABI, err := gethabi.JSON(strings.NewReader(string(parsed.ABI)))
	if err != nil {
		return nil, "", err
	}
	return &contractABI, parsed.ContractName, nil
}

// loadForge reads out/<Source>.sol/<Contract>.json artifacts.
func loadForge(outDir string) ([]Contract, error) {
	var contracts []Contract
	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !strings.HasSuffix(path, ".json") {
			return nil
		}
		if strings.Contains(path, "build-info") || strings.HasSuffix(path, ".metadata.json") {
			return nil
		}
		contractABI, _, perr := parseArtifact(path)
		if perr != nil || contractABI == nil {
			// Non-artifact JSON files are common under out/; skip them.
			return nil
		}
		name := strings.TrimSuffix(filepath.Base(path), ".json")
		contracts = append(contracts, Contract{Name: name, ABI: contractABI})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortContracts(contracts)
	return contracts, nil
}

// loadHardhat reads artifacts/contracts/**/<Contract>.json, skipping
// debug files.
func loadHardhat(artifactsDir string) ([]Contract, error) {
	var contracts []Contract
	err := filepath.WalkDir(artifactsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".dbg.json") {
			return nil
		}
		contractABI, contractName, perr := parseArtifact(path)
		if perr != nil || contractABI == nil {
			return nil
		}
		name := contractName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		contracts = append(contracts, Contract{Name: name, ABI: contractABI})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortContracts(contracts)
	return contracts, nil
}

func sortContracts(contracts []Contract) {
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].Name < contracts[j].Name })
}
