package graphql

import (
	"net/http"

	"github.com/graph-gophers/graphql-go"
	"github.com/labstack/echo/v4"

	"mes.GO/core/auth"
	"mes.GO/core/container"
	graphqlpkg "mes.GO/graphql"
	"mes.GO/graphqlserver"
)

// GraphQLRequest is the standard GraphQL request body
type GraphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// GraphQLResponse is the standard GraphQL response
type GraphQLResponse struct {
	Data   interface{}    `json:"data,omitempty"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

type GraphQLError struct {
	Message string `json:"message"`
}

func RegisterGraphQLRoutes(e *echo.Echo, c *container.Container, mw ...echo.MiddlewareFunc) {
	schema, err := graphqlserver.NewSchema(c)
	if err != nil {
		panic("graphql schema: " + err.Error())
	}
	registerRoutes(e, c, schema, mw...)
}

// RegisterGraphQLRoutesWithSchema registers /graphql with a custom schema (for tests).
func RegisterGraphQLRoutesWithSchema(e *echo.Echo, c *container.Container, schema *graphql.Schema) {
	registerRoutes(e, c, schema)
}

func registerRoutes(e *echo.Echo, c *container.Container, schema *graphql.Schema, mw ...echo.MiddlewareFunc) {
	h := echo.WrapHandler(graphqlserver.Handler(schema))
	mw = append(mw, requestContext(c))
	e.POST("/graphql", h, mw...)
	e.GET("/graphql", h, mw...)
	e.GET("/playground", echo.WrapHandler(playgroundHandler()))
}

// requestContext hands the caller and the service container to the resolvers.
func requestContext(c *container.Container) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			actor := auth.Actor(ec, ec.Request().Header.Get(graphqlpkg.HeaderActor))
			ctx := graphqlpkg.WithActor(ec.Request().Context(), actor)
			ctx = graphqlpkg.WithContainer(ctx, c)
			ec.SetRequest(ec.Request().WithContext(ctx))
			return next(ec)
		}
	}
}

func playgroundHandler() http.Handler {
	html := `<!DOCTYPE html>
<html>
<head>
	<title>MES GraphQL Playground</title>
	<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/graphql-playground-react/build/static/css/index.css"/>
</head>
<body>
	<div id="root"/>
	<script src="https://cdn.jsdelivr.net/npm/graphql-playground-react/build/static/js/middleware.js"></script>
	<script>window.addEventListener('load', function() {
		GraphQLPlayground.init({ endpoint: '/graphql' });
	})</script>
</body>
</html>`
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	})
}
