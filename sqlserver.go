package composetest

import (
	"database/sql"
	"fmt"

	"github.com/flanksource/compose-test/connection"

	_ "github.com/microsoft/go-mssqldb"
)

// ToAcceptMSSQLConnections is satisfied once SQL Server answers a
// trivial query on the external endpoint resolved for internalPort.
// Every connection failure counts as "not ready yet": SQL Server accepts
// TCP connections well before it can execute queries.
func ToAcceptMSSQLConnections(internalPort int, password string) ReadinessCheck {
	return CheckFunc(func(c *connection.Container) (bool, error) {
		port, err := c.PortMappedExternallyTo(internalPort)
		if err != nil {
			if errorIsTransient(err) {
				return false, nil
			}
			return false, err
		}

		dsn := fmt.Sprintf("server=%s;port=%d;database=master;user id=sa;password=%s;encrypt=disable",
			port.Host(), port.ExternalPort(), password)

		db, err := sql.Open("sqlserver", dsn)
		if err != nil {
			return false, nil
		}
		defer db.Close()

		var result int
		if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
			return false, nil
		}
		return result == 1, nil
	})
}
