package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"brokerdesk-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// AssetConfig is one entry of assets.yaml. Amounts are strings so they parse exactly.
type AssetConfig struct {
	Symbol        string `yaml:"symbol"`
	Network       string `yaml:"network"`
	CoinGeckoId   string `yaml:"coingecko_id"`
	MinDeposit    string `yaml:"min_deposit"`
	MinWithdrawal string `yaml:"min_withdrawal"`
	CompanyWallet string `yaml:"company_wallet"`
}

type AssetsConfig struct {
	Assets []AssetConfig `yaml:"assets"`
}

// LoadAssetCatalog reads the depositable assets from assetsFile. A missing file falls
// back to the built-in catalog; a malformed one is an error.
func LoadAssetCatalog(assetsFile string) (models.AssetCatalog, error) {
	assetsPath, err := resolvePath(assetsFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(assetsPath)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("No assets file, using built-in catalog", zap.String("path", assetsPath))
		return models.DefaultAssetCatalog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", assetsFile, err)
	}

	return ParseAssetCatalog(data)
}

// ParseAssetCatalog validates raw assets.yaml content.
func ParseAssetCatalog(data []byte) (models.AssetCatalog, error) {
	var config AssetsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse assets: %w", err)
	}
	if len(config.Assets) == 0 {
		return nil, fmt.Errorf("assets file lists no assets")
	}

	catalog := make(models.AssetCatalog, len(config.Assets))
	for i, entry := range config.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("asset at index %d missing symbol", i)
		}
		if entry.Network == "" {
			return nil, fmt.Errorf("asset %s missing network", symbol)
		}
		if _, dup := catalog[symbol]; dup {
			return nil, fmt.Errorf("asset %s listed twice", symbol)
		}

		minDeposit, err := parseAmount(entry.MinDeposit)
		if err != nil {
			return nil, fmt.Errorf("asset %s min_deposit: %w", symbol, err)
		}
		minWithdrawal, err := parseAmount(entry.MinWithdrawal)
		if err != nil {
			return nil, fmt.Errorf("asset %s min_withdrawal: %w", symbol, err)
		}

		catalog[symbol] = models.Asset{
			Symbol:        symbol,
			Network:       entry.Network,
			CoinGeckoId:   entry.CoinGeckoId,
			MinDeposit:    minDeposit,
			MinWithdrawal: minWithdrawal,
			CompanyWallet: entry.CompanyWallet,
		}
	}
	return catalog, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative, got %s", s)
	}
	return d, nil
}

func resolvePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(wd, file), nil
}
