package directory

import (
	"context"
	"net/http"
	"net/url"

	"github.com/agentstation/membersync/internal/transport"
	"github.com/agentstation/membersync/pkg/errors"
	"github.com/agentstation/membersync/pkg/logging"
)

// API endpoints, relative to the directory base URL.
const (
	pathLogin       = "auth/login"
	pathUsers       = "crud/users"
	pathWallets     = "crud/wallets"
	pathCredentials = "crud/meansoflogin"
	pathMemberships = "crud/memberships"
)

// Write operation names, used in WriteError.Operation and in logs.
const (
	OpCreateUser       = "create-user"
	OpUpdateUserEmail  = "update-email"
	OpCreateWallet     = "create-wallet"
	OpUpdateWallet     = "bind-wallet"
	OpAddCredential    = "add-credential"
	OpUpdateCredential = "update-credential"
	OpAddMembership    = "add-membership"
	OpRemoveMembership = "remove-membership"
)

// Reader is the read side of the directory API.
type Reader interface {
	Login(ctx context.Context, creds Credentials) (string, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// Writer is the write side of the directory API. Every method is a single
// remote call; none of them retries.
type Writer interface {
	CreateUser(ctx context.Context, fields NewUser) (string, error)
	UpdateUserEmail(ctx context.Context, userID, email string) error
	CreateWallet(ctx context.Context, userID, logicalID string) (Wallet, error)
	UpdateWallet(ctx context.Context, walletID, logicalID string) error
	AddCredential(ctx context.Context, userID string, cred Credential) (string, error)
	UpdateCredential(ctx context.Context, credentialID string, cred Credential) error
	AddMembership(ctx context.Context, userID, groupID, periodID string) (string, error)
	RemoveMembership(ctx context.Context, membershipID string) error
}

// Client talks to the membership API.
type Client struct {
	http *transport.Client
}

var (
	_ Reader = (*Client)(nil)
	_ Writer = (*Client)(nil)
)

// NewClient creates a directory client for baseURL.
func NewClient(baseURL string, opts ...transport.Option) (*Client, error) {
	hc, err := transport.New("directory", baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc}, nil
}

// Login exchanges the admin credentials for a bearer token and attaches
// it to every later call made through this client.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	req := loginRequest{Data: creds.Login, Password: creds.Password, MeanOfLogin: creds.MeanOfLogin}

	var resp loginResponse
	if err := c.http.Do(ctx, http.MethodPost, pathLogin, nil, req, &resp); err != nil {
		authErr := &errors.AuthError{Endpoint: pathLogin, Message: err.Error(), Err: err}
		var apiErr *errors.APIError
		if errors.As(err, &apiErr) {
			authErr.StatusCode = apiErr.StatusCode
			authErr.Message = apiErr.Message
		}
		return "", authErr
	}
	if resp.Token == "" {
		return "", &errors.AuthError{Endpoint: pathLogin, Message: "response carried no token"}
	}

	c.http.SetAuthenticator(&transport.BearerAuth{Token: resp.Token})
	logging.FromContext(ctx).Debug().Str("login", creds.Login).Msg("Directory token acquired")
	return resp.Token, nil
}

// ListUsers fetches every non-removed user with wallets, memberships and
// credential records embedded, in one call.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	query := url.Values{"embed": {"wallets,memberships,meansOfLogin"}}

	var dtos []userDTO
	if err := c.http.Do(ctx, http.MethodGet, pathUsers, query, nil, &dtos); err != nil {
		return nil, errors.NewFetchError("directory users", err)
	}

	users := make([]User, 0, len(dtos))
	for _, d := range dtos {
		if d.IsRemoved {
			continue
		}
		users = append(users, d.toUser())
	}
	return users, nil
}

// CreateUser creates a user and returns the id the API assigned.
func (c *Client) CreateUser(ctx context.Context, fields NewUser) (string, error) {
	body := createUserDTO{
		FirstName: fields.FirstName,
		LastName:  fields.LastName,
		Mail:      fields.Email,
		Pin:       fields.PIN,
		Password:  fields.Password,
	}
	var resp idDTO
	if err := c.http.Do(ctx, http.MethodPost, pathUsers, nil, body, &resp); err != nil {
		return "", errors.NewWriteError(OpCreateUser, fields.Email, err)
	}
	if resp.ID == "" {
		return "", errors.NewWriteError(OpCreateUser, fields.Email, errors.New("response carried no id"))
	}
	return resp.ID, nil
}

// UpdateUserEmail replaces the stored email of a user.
func (c *Client) UpdateUserEmail(ctx context.Context, userID, email string) error {
	if err := c.http.Do(ctx, http.MethodPut, pathUsers+"/"+url.PathEscape(userID), nil, updateUserDTO{Mail: email}, nil); err != nil {
		return errors.NewWriteError(OpUpdateUserEmail, userID, err)
	}
	return nil
}

// CreateWallet creates a wallet for userID, bound to logicalID when it is
// not empty.
func (c *Client) CreateWallet(ctx context.Context, userID, logicalID string) (Wallet, error) {
	body := walletDTO{UserID: userID, LogicalID: optional(logicalID)}
	var resp walletDTO
	if err := c.http.Do(ctx, http.MethodPost, pathWallets, nil, body, &resp); err != nil {
		return Wallet{}, errors.NewWriteError(OpCreateWallet, userID, err)
	}
	w := resp.toWallet()
	if w.LogicalID == "" {
		w.LogicalID = logicalID
	}
	return w, nil
}

// UpdateWallet binds a wallet to logicalID.
func (c *Client) UpdateWallet(ctx context.Context, walletID, logicalID string) error {
	body := walletDTO{LogicalID: optional(logicalID)}
	if err := c.http.Do(ctx, http.MethodPut, pathWallets+"/"+url.PathEscape(walletID), nil, body, nil); err != nil {
		return errors.NewWriteError(OpUpdateWallet, walletID, err)
	}
	return nil
}

// AddCredential attaches a credential record to a user.
func (c *Client) AddCredential(ctx context.Context, userID string, cred Credential) (string, error) {
	body := molDTO{UserID: userID, Type: cred.Type, Data: cred.Data}
	var resp idDTO
	if err := c.http.Do(ctx, http.MethodPost, pathCredentials, nil, body, &resp); err != nil {
		return "", errors.NewWriteError(OpAddCredential, userID+"/"+cred.Type, err)
	}
	return resp.ID, nil
}

// UpdateCredential rewrites the payload of an existing credential record.
func (c *Client) UpdateCredential(ctx context.Context, credentialID string, cred Credential) error {
	body := molDTO{Type: cred.Type, Data: cred.Data}
	if err := c.http.Do(ctx, http.MethodPut, pathCredentials+"/"+url.PathEscape(credentialID), nil, body, nil); err != nil {
		return errors.NewWriteError(OpUpdateCredential, credentialID, err)
	}
	return nil
}

// AddMembership places a user in a group for a period.
func (c *Client) AddMembership(ctx context.Context, userID, groupID, periodID string) (string, error) {
	body := membershipDTO{UserID: userID, GroupID: groupID, PeriodID: periodID}
	var resp idDTO
	if err := c.http.Do(ctx, http.MethodPost, pathMemberships, nil, body, &resp); err != nil {
		return "", errors.NewWriteError(OpAddMembership, userID+"/"+groupID, err)
	}
	return resp.ID, nil
}

// RemoveMembership deletes one membership row.
func (c *Client) RemoveMembership(ctx context.Context, membershipID string) error {
	if err := c.http.Do(ctx, http.MethodDelete, pathMemberships+"/"+url.PathEscape(membershipID), nil, nil, nil); err != nil {
		return errors.NewWriteError(OpRemoveMembership, membershipID, err)
	}
	return nil
}
