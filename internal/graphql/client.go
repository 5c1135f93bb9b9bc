// Package graphql executes queries and mutations against the data store's
// GraphQL endpoint.
package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/machinebox/graphql"
	"github.com/sirupsen/logrus"

	"github.com/furnigo/furnigo-api/internal/apperrors"
	"github.com/furnigo/furnigo-api/internal/config"
	"github.com/furnigo/furnigo-api/internal/metrics"
)

// Executor runs one document with its variables and decodes the data payload
// into out.
type Executor interface {
	Execute(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error
}

type Client struct {
	client *graphql.Client
	apiKey string
}

var operationName = regexp.MustCompile(`^\s*(?:query|mutation)\s+([A-Za-z_][A-Za-z0-9_]*)`)

func NewClient(cfg *config.SupabaseConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := graphql.NewClient(cfg.GraphQLURL, graphql.WithHTTPClient(httpClient))
	c.Log = func(s string) {
		logrus.WithField("component", "graphql").Debug(s)
	}

	return &Client{
		client: c,
		apiKey: cfg.ServiceRoleKey,
	}
}

func (c *Client) Execute(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	op := OperationName(query)

	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("apikey", c.apiKey)
	}

	logrus.WithFields(logrus.Fields{
		"operation": op,
		"variables": len(vars),
	}).Debug("Sending GraphQL request")

	err := c.client.Run(ctx, req, out)
	metrics.RecordGraphQLRequest(op, err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperrors.FromContext(op, ctxErr)
		}
		return apperrors.FromContext(op, err)
	}

	return nil
}

// OperationName returns the name declared in a query or mutation document.
func OperationName(query string) string {
	if m := operationName.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	return "anonymous"
}

// ID decodes numeric keys that the endpoint may render as a JSON number or,
// for bigint columns, as a string.
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = 0
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("id %s: %w", b, err)
		}
		n = json.Number(s)
	}

	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("id %s: %w", b, err)
	}
	*id = ID(v)
	return nil
}

// Edge wraps a collection node.
type Edge[T any] struct {
	Node T `json:"node"`
}

// Connection is the shape of every `<table>Collection` field.
type Connection[T any] struct {
	Edges    []Edge[T] `json:"edges"`
	PageInfo PageInfo  `json:"pageInfo"`
}

type PageInfo struct {
	HasNextPage bool `json:"hasNextPage"`
}

// Nodes flattens the connection.
func (c Connection[T]) Nodes() []T {
	nodes := make([]T, 0, len(c.Edges))
	for _, e := range c.Edges {
		nodes = append(nodes, e.Node)
	}
	return nodes
}

// MutationResult is returned by insertInto/update/deleteFrom mutations.
type MutationResult[T any] struct {
	AffectedCount int `json:"affectedCount"`
	Records       []T `json:"records"`
}
