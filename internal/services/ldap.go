package services

import (
	"crypto/tls"
	"fmt"

	"github.com/classtask/taskmaster/backend/internal/config"
	"github.com/go-ldap/ldap/v3"
)

// LDAPService authenticates against a school directory server. Directory
// accounts map to student profiles; teachers register locally.
type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

func (s *LDAPService) IsEnabled() bool {
	return s.config.Enabled
}

// DirectoryUser is the subset of directory attributes the profile needs.
type DirectoryUser struct {
	DN    string
	Email string
	Name  string
}

// Authenticate verifies credentials against the directory and returns
// the matched user's attributes.
func (s *LDAPService) Authenticate(email, password string) (*DirectoryUser, error) {
	if !s.config.Enabled {
		return nil, fmt.Errorf("directory authentication is not enabled")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var conn *ldap.Conn
	var err error

	if s.config.UseSSL {
		conn, err = ldap.DialTLS("tcp", addr, &tls.Config{InsecureSkipVerify: true})
	} else {
		conn, err = ldap.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to directory server: %w", err)
	}
	defer conn.Close()

	// Bind with service account (if configured)
	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	searchFilter := fmt.Sprintf(s.config.UserFilter, ldap.EscapeFilter(email))
	searchRequest := ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		searchFilter,
		[]string{"dn", "cn", "mail"},
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("directory search failed: %w", err)
	}

	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("user not found in directory")
	}
	if len(result.Entries) > 1 {
		return nil, fmt.Errorf("multiple users found in directory")
	}

	entry := result.Entries[0]

	// Bind as the user to verify the password
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	user := &DirectoryUser{
		DN:    entry.DN,
		Email: entry.GetAttributeValue("mail"),
		Name:  entry.GetAttributeValue("cn"),
	}
	if user.Email == "" {
		user.Email = email
	}

	return user, nil
}
