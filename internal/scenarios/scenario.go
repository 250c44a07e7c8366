package scenarios

import (
	"time"

	"nocs-settlement/internal/clients/nocs"
	"nocs-settlement/internal/config"
	"nocs-settlement/internal/models"
	"nocs-settlement/internal/utils"
)

// Role selects whose identity a step acts under.
type Role string

const (
	RoleCollector Role = "collector"
	RoleReceiver  Role = "receiver"
)

// AuthMode selects how a step's Authorization header is produced.
type AuthMode int

const (
	AuthSigned AuthMode = iota
	// AuthUnsigned sends no Authorization headers.
	AuthUnsigned
	// AuthForeignSubscriber signs with the collector key but advertises an
	// unregistered subscriber id in keyId.
	AuthForeignSubscriber
)

func (a AuthMode) String() string {
	switch a {
	case AuthUnsigned:
		return "unsigned"
	case AuthForeignSubscriber:
		return "foreign_subscriber"
	default:
		return "signed"
	}
}

// Wait is the delay inserted before a step.
type Wait int

const (
	WaitNone Wait = iota
	WaitResubmit
	WaitReconcile
)

// Step is one request of a scenario. A step with a Wait depends on the step
// before it and only runs if that step was acknowledged, unless it is
// Independent.
type Step struct {
	Name        string
	Endpoint    nocs.Endpoint
	Role        Role
	Auth        AuthMode
	Wait        Wait
	Independent bool
	Build       func(env *StepEnv) *models.Request
}

// StepEnv is what a step builder sees at send time.
type StepEnv struct {
	Now      time.Time
	Previous []StepResult
}

// Scenario is one conformance test case.
type Scenario struct {
	ID          string
	Title       string
	Expectation string
	Steps       func(p *Params) []Step
}

// Identity holds the participant ids placed into contexts and messages.
type Identity struct {
	BapID          string
	BapURI         string
	BppID          string
	BppURI         string
	CollectorAppID string
	ReceiverAppID  string
}

// IdentityFromConfig collects the identity fields from cfg.
func IdentityFromConfig(cfg *config.Config) Identity {
	return Identity{
		BapID:          cfg.ONDC.BapID,
		BapURI:         cfg.ONDC.BapURI,
		BppID:          cfg.ONDC.BppID,
		BppURI:         cfg.ONDC.BppURI,
		CollectorAppID: cfg.ONDC.CollectorAppID,
		ReceiverAppID:  cfg.Receiver.AppID,
	}
}

// Params are the per-run inputs of a scenario. Unique is fresh for every run.
type Params struct {
	Unique   string
	Identity Identity
	Options  config.ScenarioConfig
}

// NewParams draws a fresh unique suffix.
func NewParams(identity Identity, options config.ScenarioConfig) *Params {
	return &Params{
		Unique:   utils.NewShortID(),
		Identity: identity,
		Options:  options,
	}
}

// defaultPreviewOptions fills the options a catalog listing needs without a
// loaded configuration.
var defaultPreviewOptions = config.ScenarioConfig{
	InvalidBapID:            "invalid-bap-id",
	MismatchedReceiverAppID: "different-receiver",
}

// ID joins parts and the run suffix, e.g. ID("tc04", "txn") is
// "tc04-txn-ab12cd34".
func (p *Params) ID(parts ...string) string {
	return utils.JoinID(append(parts, p.Unique)...)
}

// newContext builds the request context. Receiver steps identify as the
// receiver app.
func (p *Params) newContext(action string, role Role, txnID, msgID string, now time.Time) models.Context {
	bapID := p.Identity.BapID
	if role == RoleReceiver {
		bapID = p.Identity.ReceiverAppID
	}
	return models.Context{
		Domain:        models.DomainNTS10,
		Location:      models.DefaultLocation(),
		Version:       models.ProtocolVersion,
		Action:        action,
		BapID:         bapID,
		BapURI:        p.Identity.BapURI,
		BppID:         p.Identity.BppID,
		BppURI:        p.Identity.BppURI,
		TransactionID: txnID,
		MessageID:     msgID,
		Timestamp:     models.NewTimestamp(now),
		TTL:           models.DefaultTTL,
	}
}

// settleStep returns a settle step whose message is fixed at plan time.
func (p *Params) settleStep(name string, role Role, wait Wait, txnID, msgID string, msg *models.SettleMessage) Step {
	return Step{
		Name:     name,
		Endpoint: nocs.EndpointSettle,
		Role:     role,
		Wait:     wait,
		Build: func(env *StepEnv) *models.Request {
			return &models.Request{
				Context: p.newContext(models.ActionSettle, role, txnID, msgID, env.Now),
				Message: msg,
			}
		},
	}
}

// reportStep returns a report step; refs resolves the references at send time.
func (p *Params) reportStep(name string, wait Wait, txnID, msgID string, refs func(env *StepEnv) models.ReportMessage) Step {
	return Step{
		Name:     name,
		Endpoint: nocs.EndpointReport,
		Role:     RoleCollector,
		Wait:     wait,
		Build: func(env *StepEnv) *models.Request {
			msg := refs(env)
			return &models.Request{
				Context: p.newContext(models.ActionReport, RoleCollector, txnID, msgID, env.Now),
				Message: &msg,
			}
		},
	}
}

// settleMessage fills the collector and receiver app ids.
func (p *Params) settleMessage(settlement models.Settlement) *models.SettleMessage {
	return &models.SettleMessage{
		CollectorAppID: p.Identity.CollectorAppID,
		ReceiverAppID:  p.Identity.ReceiverAppID,
		Settlement:     settlement,
	}
}

// orderAmounts are the four legs of an NP-NP order.
type orderAmounts struct {
	InterParticipant string
	Collector        string
	Provider         string
	Self             string
}

var standardAmounts = orderAmounts{
	InterParticipant: "1000.00",
	Collector:        "50.00",
	Provider:         "800.00",
	Self:             "200.00",
}

const (
	testProviderName    = "Test Provider"
	testProviderAccount = "1234567890"
	testProviderIFSC    = "IFSC0001"
)

func testProvider(id, amount string) *models.Provider {
	return &models.Provider{
		ID:   id,
		Name: testProviderName,
		BankDetails: models.BankDetails{
			AccountNo: testProviderAccount,
			IFSCCode:  testProviderIFSC,
		},
		Amount: models.INR(amount),
	}
}

func party(amount string) *models.PartyAmount {
	return &models.PartyAmount{Amount: models.INR(amount)}
}

func npOrder(orderID, providerID string, amounts orderAmounts) models.Order {
	return models.Order{
		ID:               orderID,
		InterParticipant: party(amounts.InterParticipant),
		Collector:        party(amounts.Collector),
		Provider:         testProvider(providerID, amounts.Provider),
		Self:             party(amounts.Self),
	}
}

func npSettlement(settlementID string, orders ...models.Order) models.Settlement {
	return models.Settlement{
		Type:   models.SettlementTypeNPNP,
		ID:     settlementID,
		Orders: orders,
	}
}
