package graphql

import gql "github.com/graph-gophers/graphql-go"

// Query argument types. graphql-go matches them to the schema by field name.

type SyncLogsArgs struct {
	SyncType *string
	Limit    int32
}

type WorkOrderArgs struct {
	ID gql.ID
}

type WorkOrdersArgs struct {
	Status *string
	Limit  int32
}

type WindowArgs struct {
	From string
	To   string
}

// ExtensionArgs for _extension(name, args).
type ExtensionArgs struct {
	Name string
	Args *string
}
