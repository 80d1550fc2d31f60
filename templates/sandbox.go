// Package templates holds the SQL text issued by the judge.
package templates

// Principal management, executed with the admin connection.
const (
	CreateUser = `CREATE USER %s IDENTIFIED BY "%s" DEFAULT TABLESPACE %s TEMPORARY TABLESPACE TEMP QUOTA UNLIMITED ON %s`

	GrantUser = `GRANT create table, delete any table, select any dictionary, connect, create session, ` +
		`create synonym, create public synonym, create sequence, create view, ` +
		`create trigger, alter any trigger, drop any trigger, ` +
		`create procedure, alter any procedure, drop any procedure, execute any procedure ` +
		`TO %s`

	DropUser = `DROP USER %s CASCADE`

	UserSessions = `SELECT sid, serial# FROM v$session WHERE username = :1`

	KillSession = `ALTER SYSTEM KILL SESSION '%d,%d' IMMEDIATE`
)

// Queries run as the principal.
const (
	UserTables = `SELECT table_name FROM USER_TABLES ORDER BY table_name`

	SelectAll = `SELECT * FROM %s`

	SelectAllQuoted = `SELECT * FROM "%s"`

	// USER_ERRORS is the only way to learn about failed compilations, CREATE
	// FUNCTION and CREATE PROCEDURE succeed anyway.
	CompilationErrors = `SELECT NAME, LINE, POSITION, TEXT, ATTRIBUTE FROM SYS.USER_ERRORS WHERE TYPE = :1 ORDER BY SEQUENCE`

	FunctionCall = `SELECT %s FROM DUAL`

	ProcedureCall = `BEGIN %s; END;`
)
