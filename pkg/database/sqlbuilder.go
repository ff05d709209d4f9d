package database

import (
	"github.com/huandu/go-sqlbuilder"
)

// Builder constructors pinned to the MySQL flavor so repositories never have to
// name the flavor themselves.

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return sqlbuilder.MySQL.NewSelectBuilder()
}

func NewInsertBuilder() *sqlbuilder.InsertBuilder {
	return sqlbuilder.MySQL.NewInsertBuilder()
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return sqlbuilder.MySQL.NewUpdateBuilder()
}

func NewDeleteBuilder() *sqlbuilder.DeleteBuilder {
	return sqlbuilder.MySQL.NewDeleteBuilder()
}
