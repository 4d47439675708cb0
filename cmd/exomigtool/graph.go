package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	abstractions "github.com/microsoft/kiota-abstractions-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	msgraphgocore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"github.com/microsoftgraph/msgraph-sdk-go/groups"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"exomigtool/internal/common/logger"
	"exomigtool/internal/common/ratelimit"
	"exomigtool/internal/exchange/distgroup"
	"exomigtool/internal/exchange/domains"
)

// memberPageSize is the $top used when paging group members.
const memberPageSize = 100

var (
	errAmbiguous = errors.New("more than one directory object matches")

	userSelect  = []string{"id", "displayName", "mail", "userPrincipalName", "proxyAddresses"}
	groupSelect = []string{"id", "displayName", "mail", "mailNickname", "proxyAddresses", "onPremisesSyncEnabled"}
)

// Mailbox is the part of a user object reconcile needs.
type Mailbox struct {
	ID                string
	DisplayName       string
	Mail              string
	UserPrincipalName string
	ProxyAddresses    []string
}

// directory is the read-only view of the tenant the Graph actions work
// against. Lookups return nil without error when nothing matches.
type directory interface {
	AcceptedDomains(ctx context.Context) ([]domains.AcceptedDomain, error)
	FindMailbox(ctx context.Context, address string) (*Mailbox, error)
	FindGroup(ctx context.Context, address string) (*distgroup.Group, error)
	GroupByID(ctx context.Context, id string) (*distgroup.Group, error)
	GroupMembers(ctx context.Context, id string) ([]distgroup.Member, error)
}

// graphDirectory implements directory with the Graph SDK. Every request goes
// through graphCall for rate limiting and retries.
type graphDirectory struct {
	client  *msgraphsdk.GraphServiceClient
	config  *Config
	limiter *ratelimit.Limiter
	log     *slog.Logger
}

func newGraphDirectory(client *msgraphsdk.GraphServiceClient, config *Config, log *slog.Logger) *graphDirectory {
	return &graphDirectory{
		client:  client,
		config:  config,
		limiter: ratelimit.New(config.RateLimit),
		log:     log,
	}
}

// eventualHeaders enables advanced queries ($count, any() filters on
// proxyAddresses).
func eventualHeaders() *abstractions.RequestHeaders {
	headers := abstractions.NewRequestHeaders()
	headers.Add("ConsistencyLevel", "eventual")
	return headers
}

// addressFilter matches an object by primary or secondary SMTP address.
func addressFilter(address string) string {
	esc := escapeODataString(address)
	return fmt.Sprintf("mail eq '%s' or proxyAddresses/any(p:p eq 'smtp:%s')", esc, esc)
}

func (g *graphDirectory) call(ctx context.Context, operation string, fn func() error) error {
	logger.LogVerbose(g.config.VerboseMode, "Calling Graph API: %s", operation)
	err := graphCall(ctx, g.config, g.limiter, g.log, fn)
	return enrichGraphAPIError(err, g.log, operation)
}

func (g *graphDirectory) AcceptedDomains(ctx context.Context) ([]domains.AcceptedDomain, error) {
	var result models.DomainCollectionResponseable
	err := g.call(ctx, "GET /domains", func() error {
		var err error
		result, err = g.client.Domains().Get(ctx, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	iter, err := msgraphgocore.NewPageIterator[models.Domainable](result, g.client.GetAdapter(), models.CreateDomainCollectionResponseFromDiscriminatorValue)
	if err != nil {
		return nil, fmt.Errorf("failed to create domain page iterator: %w", err)
	}

	var accepted []domains.AcceptedDomain
	err = iter.Iterate(ctx, func(d models.Domainable) bool {
		accepted = append(accepted, domains.AcceptedDomain{
			Name:       deref(d.GetId()),
			IsDefault:  deref(d.GetIsDefault()),
			IsInitial:  deref(d.GetIsInitial()),
			IsVerified: deref(d.GetIsVerified()),
		})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to page domains: %w", err)
	}
	logger.LogDebug(g.log, "Fetched accepted domains", "count", len(accepted))
	return accepted, nil
}

// FindMailbox looks the mailbox up by UPN first, then by any SMTP address.
func (g *graphDirectory) FindMailbox(ctx context.Context, address string) (*Mailbox, error) {
	var user models.Userable
	err := g.call(ctx, "GET /users/"+address, func() error {
		var err error
		user, err = g.client.Users().ByUserId(address).Get(ctx, &users.UserItemRequestBuilderGetRequestConfiguration{
			QueryParameters: &users.UserItemRequestBuilderGetQueryParameters{Select: userSelect},
		})
		return err
	})
	if err == nil {
		return mailboxFromUser(user), nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	var result models.UserCollectionResponseable
	err = g.call(ctx, "GET /users?$filter=address", func() error {
		var err error
		result, err = g.client.Users().Get(ctx, &users.UsersRequestBuilderGetRequestConfiguration{
			Headers: eventualHeaders(),
			QueryParameters: &users.UsersRequestBuilderGetQueryParameters{
				Filter: pointerTo(addressFilter(address)),
				Select: userSelect,
				Count:  pointerTo(true),
				Top:    pointerTo(int32(2)),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	switch found := result.GetValue(); len(found) {
	case 0:
		return nil, nil
	case 1:
		return mailboxFromUser(found[0]), nil
	default:
		return nil, fmt.Errorf("%s: %w", address, errAmbiguous)
	}
}

func mailboxFromUser(u models.Userable) *Mailbox {
	return &Mailbox{
		ID:                deref(u.GetId()),
		DisplayName:       deref(u.GetDisplayName()),
		Mail:              deref(u.GetMail()),
		UserPrincipalName: deref(u.GetUserPrincipalName()),
		ProxyAddresses:    u.GetProxyAddresses(),
	}
}

// FindGroup looks a mail-enabled group up by any of its SMTP addresses.
// Members are not loaded.
func (g *graphDirectory) FindGroup(ctx context.Context, address string) (*distgroup.Group, error) {
	var result models.GroupCollectionResponseable
	err := g.call(ctx, "GET /groups?$filter=address", func() error {
		var err error
		result, err = g.client.Groups().Get(ctx, &groups.GroupsRequestBuilderGetRequestConfiguration{
			Headers: eventualHeaders(),
			QueryParameters: &groups.GroupsRequestBuilderGetQueryParameters{
				Filter: pointerTo(addressFilter(address)),
				Select: groupSelect,
				Count:  pointerTo(true),
				Top:    pointerTo(int32(2)),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	switch found := result.GetValue(); len(found) {
	case 0:
		return nil, nil
	case 1:
		return groupFromModel(found[0]), nil
	default:
		return nil, fmt.Errorf("%s: %w", address, errAmbiguous)
	}
}

func (g *graphDirectory) GroupByID(ctx context.Context, id string) (*distgroup.Group, error) {
	var group models.Groupable
	err := g.call(ctx, "GET /groups/"+id, func() error {
		var err error
		group, err = g.client.Groups().ByGroupId(id).Get(ctx, &groups.GroupItemRequestBuilderGetRequestConfiguration{
			QueryParameters: &groups.GroupItemRequestBuilderGetQueryParameters{Select: groupSelect},
		})
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return groupFromModel(group), nil
}

func groupFromModel(g models.Groupable) *distgroup.Group {
	return &distgroup.Group{
		ID:                    deref(g.GetId()),
		DisplayName:           deref(g.GetDisplayName()),
		Mail:                  deref(g.GetMail()),
		MailNickname:          deref(g.GetMailNickname()),
		ProxyAddresses:        g.GetProxyAddresses(),
		OnPremisesSyncEnabled: deref(g.GetOnPremisesSyncEnabled()),
	}
}

// GroupMembers pages through the direct members of a group. The limiter is
// consulted once per page.
func (g *graphDirectory) GroupMembers(ctx context.Context, id string) ([]distgroup.Member, error) {
	var result models.DirectoryObjectCollectionResponseable
	err := g.call(ctx, "GET /groups/"+id+"/members", func() error {
		var err error
		result, err = g.client.Groups().ByGroupId(id).Members().Get(ctx, &groups.ItemMembersRequestBuilderGetRequestConfiguration{
			QueryParameters: &groups.ItemMembersRequestBuilderGetQueryParameters{
				Select: []string{"id", "displayName", "mail"},
				Top:    pointerTo(int32(memberPageSize)),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	iter, err := msgraphgocore.NewPageIterator[models.DirectoryObjectable](result, g.client.GetAdapter(), models.CreateDirectoryObjectCollectionResponseFromDiscriminatorValue)
	if err != nil {
		return nil, fmt.Errorf("failed to create member page iterator: %w", err)
	}

	var members []distgroup.Member
	var waitErr error
	err = iter.Iterate(ctx, func(obj models.DirectoryObjectable) bool {
		members = append(members, memberFromModel(obj))
		if len(members)%memberPageSize == 0 {
			if waitErr = g.limiter.Wait(ctx); waitErr != nil {
				return false
			}
		}
		return true
	})
	if err == nil {
		err = waitErr
	}
	if err != nil {
		return nil, enrichGraphAPIError(fmt.Errorf("failed to page members of %s: %w", id, err), g.log, "GET /groups/"+id+"/members")
	}
	logger.LogDebug(g.log, "Fetched group members", "group", id, "count", len(members))
	return members, nil
}

func memberFromModel(obj models.DirectoryObjectable) distgroup.Member {
	m := distgroup.Member{ID: deref(obj.GetId())}
	switch v := obj.(type) {
	case models.Userable:
		m.DisplayName, m.Mail = deref(v.GetDisplayName()), deref(v.GetMail())
	case models.Groupable:
		m.DisplayName, m.Mail = deref(v.GetDisplayName()), deref(v.GetMail())
	case models.OrgContactable:
		m.DisplayName, m.Mail = deref(v.GetDisplayName()), deref(v.GetMail())
	}
	return m
}
