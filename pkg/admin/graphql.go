package admin

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/graphql-go/graphql"

	"slotdb/pkg/expr"
	"slotdb/pkg/record"
)

// graphqlSchema builds the admin GraphQL schema over s's table: a single
// Query type exposing stats, schema, and a records(where) scan. There is
// no Mutation type - the admin server adds no write path beyond what
// record.Table already exposes.
func (s *Server) graphqlSchema() (graphql.Schema, error) {
	attributeType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Attribute",
		Description: "One column of the open table's schema",
		Fields: graphql.Fields{
			"name": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"type": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"typeLength": &graphql.Field{
				Type:        graphql.Int,
				Description: "Declared width for STRING attributes",
			},
		},
	})

	recordType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Record",
		Description: "One matched row, as page/slot plus its column values rendered as strings",
		Fields: graphql.Fields{
			"page":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"slot":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"columns": &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stats",
		Fields: graphql.Fields{
			"tupleCount":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"bufferCapacity": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"bufferReadIO":   &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"bufferWriteIO":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"stats": &graphql.Field{
				Type: statsType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s.mu.Lock()
					defer s.mu.Unlock()
					capacity, readIO, writeIO := s.table.PoolStats()
					return map[string]interface{}{
						"tupleCount":     s.table.NumTuples(),
						"bufferCapacity": capacity,
						"bufferReadIO":   readIO,
						"bufferWriteIO":  writeIO,
					}, nil
				},
			},
			"schema": &graphql.Field{
				Type: graphql.NewList(attributeType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s.mu.Lock()
					defer s.mu.Unlock()
					out := make([]map[string]interface{}, len(s.table.Schema.Attributes))
					for i, a := range s.table.Schema.Attributes {
						out[i] = map[string]interface{}{
							"name":       a.Name,
							"type":       a.Type.String(),
							"typeLength": a.TypeLength,
						}
					}
					return out, nil
				},
			},
			"records": &graphql.Field{
				Type: graphql.NewList(recordType),
				Args: graphql.FieldConfigArgument{
					"where": &graphql.ArgumentConfig{
						Type:        graphql.String,
						Description: "\"<column index> = <int value>\", or omitted to match every live record",
					},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					where, _ := p.Args["where"].(string)
					pred, err := parseWhere(where)
					if err != nil {
						return nil, err
					}

					s.mu.Lock()
					defer s.mu.Unlock()
					rows, _, err := s.scanRows(pred, 0)
					if err != nil {
						return nil, err
					}

					out := make([]map[string]interface{}, len(rows))
					for i, row := range rows {
						columns := make([]string, len(row.values))
						for j, v := range row.values {
							columns[j] = v.String()
						}
						out[i] = map[string]interface{}{
							"page":    row.page,
							"slot":    row.slot,
							"columns": columns,
						}
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

// parseWhere turns a "<column> = <value>" string into an expr.Expr,
// accepting only the single equality form the REST /scan endpoint also
// supports. An empty string matches everything.
func parseWhere(where string) (expr.Expr, error) {
	if where == "" {
		return expr.True, nil
	}
	var col int
	var val int32
	if _, err := fmt.Sscanf(where, "%d = %d", &col, &val); err != nil {
		return nil, fmt.Errorf("admin: invalid where clause %q: %w", where, err)
	}
	return expr.Binary{
		Op:    expr.Eq,
		Left:  expr.Column{Index: col},
		Right: expr.Literal{Value: record.NewIntValue(val)},
	}, nil
}

// graphqlRequest is the JSON envelope GraphQL clients POST or encode as
// query parameters.
type graphqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphqlRequest
	switch r.Method {
	case http.MethodGet:
		req.Query = r.URL.Query().Get("query")
		req.OperationName = r.URL.Query().Get("operationName")
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "GraphQL only accepts GET or POST requests", http.StatusMethodNotAllowed)
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         s.gqlSchema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
