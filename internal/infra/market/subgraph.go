package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

const glpStatsQuery = `
	query LatestGlpStats {
		glpStats(first: 1, orderBy: id, orderDirection: desc, where: { period: daily }) {
			aumInUsdg
			glpSupply
		}
	}
`

// SubgraphClient queries the GMX stats subgraph over GraphQL.
type SubgraphClient struct {
	url        string
	httpClient *http.Client
}

func NewSubgraphClient(url string, timeout time.Duration) *SubgraphClient {
	return &SubgraphClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GetPoolStats returns the latest daily AUM and GLP supply.
func (c *SubgraphClient) GetPoolStats(ctx context.Context) (PoolStats, error) {
	var resp graphqlResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.url, graphqlRequest{Query: glpStatsQuery}, "subgraph", &resp); err != nil {
		return PoolStats{}, err
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return PoolStats{}, fmt.Errorf("%w: subgraph: %s", domain.ErrTransientFetch, strings.Join(msgs, "; "))
	}

	var result struct {
		GlpStats []struct {
			AUMInUSDG string `json:"aumInUsdg"`
			GLPSupply string `json:"glpSupply"`
		} `json:"glpStats"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return PoolStats{}, fmt.Errorf("%w: decode glpStats: %v", domain.ErrDataShape, err)
	}
	if len(result.GlpStats) == 0 {
		return PoolStats{}, fmt.Errorf("%w: no glpStats rows", domain.ErrDataShape)
	}

	row := result.GlpStats[0]
	aum, err := domain.ParseUnits(row.AUMInUSDG, domain.DefaultDecimals)
	if err != nil {
		return PoolStats{}, err
	}
	supply, err := domain.ParseUnits(row.GLPSupply, domain.DefaultDecimals)
	if err != nil {
		return PoolStats{}, err
	}
	return PoolStats{AUMUSD: aum, GLPSupply: supply}, nil
}
