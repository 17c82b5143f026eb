package bse

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/parsers"
	"github.com/username/bondflow/src/utils"
)

type debtSecurityInfo struct {
	Table []struct {
		ISSebiIsin string `json:"ISSebiIsin"`
		ScripName  string `json:"SCRIP_NAME"`
	} `json:"Table"`
}

// ParseSecurityISIN extracts the ISIN from a DebSecurityInfo response.
func ParseSecurityISIN(r io.Reader) (string, error) {
	var info debtSecurityInfo
	if err := json.NewDecoder(r).Decode(&info); err != nil {
		return "", fmt.Errorf("%w: bse security info: %v", parsers.ErrParsingFailed, err)
	}
	if len(info.Table) == 0 || strings.TrimSpace(info.Table[0].ISSebiIsin) == "" {
		return "", fmt.Errorf("%w: bse security info has no ISIN", models.ErrNotFound)
	}
	isin, err := utils.NormalizeISIN(info.Table[0].ISSebiIsin)
	if err != nil {
		return "", fmt.Errorf("%w: %v", parsers.ErrParsingFailed, err)
	}
	return isin, nil
}
