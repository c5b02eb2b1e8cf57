package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate 在支持的方言上追加 SELECT ... FOR UPDATE 行锁
// SQLite 以库级写锁串行化事务，不支持 FOR UPDATE 语法
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
