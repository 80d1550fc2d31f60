package sandbox

// State marks how far a session got. It is attached to every failure.
type State int

const (
	Unknown State = iota
	GetAdminConnection
	CreateUser
	GetUserConnection
	ExecuteCreate
	ExecuteInsert
	GetInitialTables
	ExecuteUserCode
	GetAllTables
	CompileCheck
	CloseUserConnection
	DropUser
	ReleaseAdminConnection
)

var stateNames = [...]string{
	Unknown:                "unknown",
	GetAdminConnection:     "get_admin_connection",
	CreateUser:             "create_user",
	GetUserConnection:      "get_user_connection",
	ExecuteCreate:          "execute_create",
	ExecuteInsert:          "execute_insert",
	GetInitialTables:       "get_initial_tables",
	ExecuteUserCode:        "execute_user_code",
	GetAllTables:           "get_all_tables",
	CompileCheck:           "compile_check",
	CloseUserConnection:    "close_user_connection",
	DropUser:               "drop_user",
	ReleaseAdminConnection: "release_admin_connection",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return stateNames[Unknown]
	}
	return stateNames[s]
}

// UserCode reports whether a failure in this state is caused by the
// submitted code. The database read before the code runs is not.
func (s State) UserCode() bool {
	return s == ExecuteUserCode || s == CompileCheck || s == GetAllTables
}
