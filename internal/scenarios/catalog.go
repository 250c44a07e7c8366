package scenarios

import (
	"fmt"
	"sort"
	"strings"

	"nocs-settlement/internal/models"
	"nocs-settlement/internal/utils"
	"nocs-settlement/pkg/errors"
)

// Catalog returns every scenario in id order.
func Catalog() []Scenario {
	return []Scenario{
		missingSettlementType(),
		invalidBapID(),
		missingAuthorization(),
		duplicateTransactionID(),
		duplicateSettlementID(),
		duplicateOrderID(),
		reconcileMatching(),
		reconcileReceiverNIL(),
		reconcileNoReceiver(),
		reconcileReceiverFirst(),
		reconcileReceiverMismatch(),
		miscSettlement(),
		reportValidRefs(),
		reportInvalidRefs(),
	}
}

// Lookup finds a scenario by id. "TC_04", "tc04", "TC-04" and "4" all name
// the same scenario.
func Lookup(id string) (Scenario, bool) {
	want := normalizeID(id)
	for _, sc := range Catalog() {
		if sc.ID == want {
			return sc, true
		}
	}
	return Scenario{}, false
}

// Select returns the named scenarios in catalog order, or the whole catalog
// when ids is empty. Unknown ids are a configuration error.
func Select(ids []string) ([]Scenario, error) {
	if len(ids) == 0 {
		return Catalog(), nil
	}

	wanted := make(map[string]bool, len(ids))
	var unknown []string
	for _, id := range ids {
		sc, ok := Lookup(id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		wanted[sc.ID] = true
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.NewConfigurationError(fmt.Sprintf("unknown scenario(s): %s", strings.Join(unknown, ", ")))
	}

	selected := make([]Scenario, 0, len(wanted))
	for _, sc := range Catalog() {
		if wanted[sc.ID] {
			selected = append(selected, sc)
		}
	}
	return selected, nil
}

func normalizeID(id string) string {
	s := strings.ToUpper(strings.TrimSpace(id))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.TrimPrefix(s, "TC_")
	s = strings.TrimPrefix(s, "TC")
	if len(s) == 1 {
		s = "0" + s
	}
	return "TC_" + s
}

func missingSettlementType() Scenario {
	return Scenario{
		ID:          "TC_01",
		Title:       "Missing settlement type",
		Expectation: "NACK 70002",
		Steps: func(p *Params) []Step {
			msg := p.settleMessage(models.Settlement{})
			return []Step{
				p.settleStep("settle", RoleCollector, WaitNone, p.ID("tc01", "txn"), p.ID("tc01", "msg"), msg),
			}
		},
	}
}

func invalidBapID() Scenario {
	return Scenario{
		ID:          "TC_02",
		Title:       "Invalid bap id in Authorization header",
		Expectation: "NACK authentication failure",
		Steps: func(p *Params) []Step {
			msg := p.settleMessage(models.Settlement{Type: models.SettlementTypeNIL})
			step := p.settleStep("settle", RoleCollector, WaitNone, p.ID("tc02", "txn"), p.ID("tc02", "msg"), msg)
			step.Auth = AuthForeignSubscriber
			return []Step{step}
		},
	}
}

func missingAuthorization() Scenario {
	return Scenario{
		ID:          "TC_03",
		Title:       "Missing Authorization header",
		Expectation: "NACK authentication failure",
		Steps: func(p *Params) []Step {
			msg := p.settleMessage(models.Settlement{Type: models.SettlementTypeNIL})
			step := p.settleStep("settle", RoleCollector, WaitNone, p.ID("tc03", "txn"), p.ID("tc03", "msg"), msg)
			step.Auth = AuthUnsigned
			return []Step{step}
		},
	}
}

func duplicateTransactionID() Scenario {
	return Scenario{
		ID:          "TC_04",
		Title:       "Duplicate transaction_id (same collector-receiver)",
		Expectation: "first ACK, second NACK for the reused transaction_id",
		Steps: func(p *Params) []Step {
			txnID := p.ID("tc04", "txn")
			msgID := p.ID("tc04", "msg")

			first := p.settleMessage(npSettlement(
				p.ID("settlement-tc04"),
				npOrder(p.ID("order-tc04"), p.ID("prvdr-tc04"), standardAmounts),
			))

			second := &models.SettleMessage{
				CollectorAppID: p.Identity.ReceiverAppID,
				ReceiverAppID:  p.Identity.CollectorAppID,
				Settlement: npSettlement(
					p.ID("settlement-tc04-duplicate"),
					npOrder(p.ID("order-tc04-duplicate"), p.ID("prvdr-tc04-duplicate"), standardAmounts),
				),
			}

			return []Step{
				p.settleStep("original", RoleCollector, WaitNone, txnID, utils.JoinID(msgID, "1"), first),
				p.settleStep("duplicate", RoleCollector, WaitResubmit, txnID, utils.JoinID(msgID, "2"), second),
			}
		},
	}
}

func duplicateSettlementID() Scenario {
	return Scenario{
		ID:          "TC_06",
		Title:       "Duplicate settlement_id",
		Expectation: "first ACK, second NACK for the reused settlement id",
		Steps: func(p *Params) []Step {
			txnID := p.ID("tc06", "txn")
			msgID := p.ID("tc06", "msg")
			settlementID := p.ID("settlement-tc06")
			orderID := p.ID("order-tc06")
			providerID := p.ID("prvdr-tc06")

			first := p.settleMessage(npSettlement(settlementID,
				npOrder(utils.JoinID(orderID, "1"), utils.JoinID(providerID, "1"), standardAmounts)))
			second := p.settleMessage(npSettlement(settlementID,
				npOrder(utils.JoinID(orderID, "2"), utils.JoinID(providerID, "2"), standardAmounts)))

			duplicate := p.settleStep("duplicate", RoleCollector, WaitResubmit, utils.JoinID(txnID, "2"), utils.JoinID(msgID, "2"), second)
			duplicate.Independent = true

			return []Step{
				p.settleStep("original", RoleCollector, WaitNone, utils.JoinID(txnID, "1"), utils.JoinID(msgID, "1"), first),
				duplicate,
			}
		},
	}
}

func duplicateOrderID() Scenario {
	return Scenario{
		ID:          "TC_07",
		Title:       "Duplicate order id within one payload",
		Expectation: "NACK for the repeated order id",
		Steps: func(p *Params) []Step {
			orderID := p.ID("order-tc07")
			providerID := p.ID("prvdr-tc07")

			msg := p.settleMessage(npSettlement(p.ID("settlement-tc07"),
				npOrder(orderID, utils.JoinID(providerID, "1"), standardAmounts),
				npOrder(orderID, utils.JoinID(providerID, "2"), orderAmounts{
					InterParticipant: "500.00",
					Collector:        "25.00",
					Provider:         "400.00",
					Self:             "100.00",
				}),
			))

			return []Step{
				p.settleStep("settle", RoleCollector, WaitNone, p.ID("tc07", "txn"), p.ID("tc07", "msg"), msg),
			}
		},
	}
}

func reconcileMatching() Scenario {
	return Scenario{
		ID:          "TC_08",
		Title:       "2-way reconciliation, matching amount",
		Expectation: "both ACK; reconciliation succeeds on matching order",
		Steps: func(p *Params) []Step {
			txn1 := p.ID("tc08", "txn")
			txn2 := utils.JoinID(txn1, "2")
			msgID := p.ID("tc08", "msg")
			orderID := p.ID("order-tc08")

			collector := p.settleMessage(npSettlement(utils.JoinID("settlement-tc08", txn1),
				npOrder(orderID, p.ID("prvdr-tc08"), standardAmounts)))
			receiver := p.settleMessage(npSettlement(utils.JoinID("settlement-tc08-receiver", txn2),
				npOrder(orderID, utils.JoinID("prvdr-tc08", txn2), standardAmounts)))

			return []Step{
				p.settleStep("collector", RoleCollector, WaitNone, txn1, utils.JoinID(msgID, "1"), collector),
				p.settleStep("receiver", RoleReceiver, WaitReconcile, txn2, utils.JoinID(msgID, "2"), receiver),
			}
		},
	}
}

func reconcileReceiverNIL() Scenario {
	return Scenario{
		ID:          "TC_13",
		Title:       "2-way reconciliation, receiver NIL settle",
		Expectation: "both ACK; collector order left unmatched",
		Steps: func(p *Params) []Step {
			txn1 := p.ID("tc13", "txn")
			msgID := p.ID("tc13", "msg")

			collector := p.settleMessage(npSettlement(p.ID("settlement-tc13"),
				npOrder(p.ID("order-tc13"), p.ID("prvdr-tc13"), standardAmounts)))
			receiver := &models.SettleMessage{
				Settlement: models.Settlement{Type: models.SettlementTypeNIL},
			}

			return []Step{
				p.settleStep("collector", RoleCollector, WaitNone, txn1, utils.JoinID(msgID, "1"), collector),
				p.settleStep("receiver-nil", RoleReceiver, WaitReconcile, utils.JoinID(txn1, "2"), utils.JoinID(msgID, "2"), receiver),
			}
		},
	}
}

func reconcileNoReceiver() Scenario {
	return Scenario{
		ID:          "TC_14",
		Title:       "2-way reconciliation, no receiver settle",
		Expectation: "ACK; order stays pending reconciliation",
		Steps: func(p *Params) []Step {
			msg := p.settleMessage(npSettlement(p.ID("settlement-tc14"),
				npOrder(p.ID("order-tc14"), p.ID("prvdr-tc14"), standardAmounts)))
			return []Step{
				p.settleStep("collector", RoleCollector, WaitNone, p.ID("tc14", "txn"), p.ID("tc14", "msg"), msg),
			}
		},
	}
}

func reconcileReceiverFirst() Scenario {
	return Scenario{
		ID:          "TC_16",
		Title:       "2-way reconciliation, receiver first",
		Expectation: "ACK; receiver order waits for the collector",
		Steps: func(p *Params) []Step {
			txn1 := p.ID("tc16", "txn")
			msg := p.settleMessage(npSettlement(utils.JoinID("settlement-tc16-receiver", txn1),
				npOrder(utils.JoinID("order-tc16", txn1), utils.JoinID("prvdr-tc16", txn1), standardAmounts)))
			return []Step{
				p.settleStep("receiver", RoleReceiver, WaitNone, txn1, utils.JoinID(p.ID("tc16", "msg"), "1"), msg),
			}
		},
	}
}

func reconcileReceiverMismatch() Scenario {
	return Scenario{
		ID:          "TC_20",
		Title:       "2-way reconciliation, receiver settle fails",
		Expectation: "collector ACK; receiver NACK for receiver_app_id not matching bap_id",
		Steps: func(p *Params) []Step {
			txn1 := p.ID("tc20", "txn")
			txn2 := utils.JoinID(txn1, "2")
			msgID := p.ID("tc20", "msg")

			collector := p.settleMessage(npSettlement(utils.JoinID("settlement-tc20", txn1),
				npOrder(utils.JoinID("order-tc20", txn1), p.ID("prvdr-tc20"), standardAmounts)))
			receiver := &models.SettleMessage{
				CollectorAppID: p.Identity.CollectorAppID,
				ReceiverAppID:  p.Options.MismatchedReceiverAppID,
				Settlement: npSettlement(utils.JoinID("settlement-tc20-receiver", txn2),
					npOrder(utils.JoinID("order-tc20", txn2), utils.JoinID("prvdr-tc20", txn2), standardAmounts)),
			}

			return []Step{
				p.settleStep("collector", RoleCollector, WaitNone, txn1, utils.JoinID(msgID, "1"), collector),
				p.settleStep("receiver-mismatch", RoleReceiver, WaitReconcile, txn2, utils.JoinID(msgID, "2"), receiver),
			}
		},
	}
}

func miscSettlement() Scenario {
	return Scenario{
		ID:          "TC_22",
		Title:       "MISC settlement with self/provider details",
		Expectation: "ACK",
		Steps: func(p *Params) []Step {
			msg := &models.SettleMessage{
				Settlement: models.Settlement{
					Type: models.SettlementTypeMISC,
					ID:   p.ID("settlement-tc22"),
					Orders: []models.Order{{
						Provider: testProvider(p.ID("prvdr-tc22"), "200.00"),
						Self:     party("200.00"),
					}},
				},
			}
			return []Step{
				p.settleStep("settle", RoleCollector, WaitNone, p.ID("tc22", "txn"), p.ID("tc22", "msg"), msg),
			}
		},
	}
}

// reportValidRefs reports on its own preceding settle unless both
// references are configured, in which case only the report is sent.
func reportValidRefs() Scenario {
	return Scenario{
		ID:          "TC_24",
		Title:       "Report with valid references",
		Expectation: "ACK",
		Steps: func(p *Params) []Step {
			reportTxn := p.ID("tc24-report", "txn")
			reportMsg := p.ID("tc24-report")

			if p.Options.ReportRefTransactionID != "" && p.Options.ReportRefMessageID != "" {
				refs := models.ReportMessage{
					RefTransactionID: p.Options.ReportRefTransactionID,
					RefMessageID:     p.Options.ReportRefMessageID,
				}
				return []Step{
					p.reportStep("report", WaitNone, reportTxn, reportMsg, func(*StepEnv) models.ReportMessage { return refs }),
				}
			}

			settle := p.settleMessage(npSettlement(p.ID("settlement-tc24"),
				npOrder(p.ID("order-tc24"), p.ID("prvdr-tc24"), standardAmounts)))

			return []Step{
				p.settleStep("settle", RoleCollector, WaitNone, p.ID("tc24", "txn"), p.ID("tc24", "msg"), settle),
				p.reportStep("report", WaitResubmit, reportTxn, reportMsg, func(env *StepEnv) models.ReportMessage {
					ref := env.Previous[len(env.Previous)-1]
					return models.ReportMessage{
						RefTransactionID: ref.TransactionID,
						RefMessageID:     ref.MessageID,
					}
				}),
			}
		},
	}
}

func reportInvalidRefs() Scenario {
	return Scenario{
		ID:          "TC_25",
		Title:       "Report with invalid references",
		Expectation: "NACK for unknown references",
		Steps: func(p *Params) []Step {
			refs := models.ReportMessage{
				RefTransactionID: p.ID("invalid-transaction-id"),
				RefMessageID:     p.ID("invalid-message-id"),
			}
			return []Step{
				p.reportStep("report", WaitNone, p.ID("tc25-report", "txn"), p.ID("tc25-report"),
					func(*StepEnv) models.ReportMessage { return refs }),
			}
		},
	}
}
