package migrate

import "fmt"

// history returns the full upgrade chain, oldest first.
//
//	v1: flat collections, no origin tags, transfers stored one-sided
//	v2: transactions carry origin and tags
//	v3: transfers stored as linked two-leg groups
//	v4: rules carry priority and enabled flag, budgets carry rollover
func history() []Upgrader {
	return []Upgrader{
		{From: 1, Description: "add transaction origin and tags", Up: upgradeV1},
		{From: 2, Description: "pair transfer legs into groups", Up: upgradeV2},
		{From: 3, Description: "add rule priority/enabled and budget rollover", Up: upgradeV3},
	}
}

// docList extracts a []any collection, tolerating a missing key.
func docList(doc map[string]any, key string) []any {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	return list
}

// upgradeV1 stamps every transaction with a default origin. Pre-v2 builds
// only had manual entry; the tags field needs no backfill, absent means none.
func upgradeV1(doc map[string]any) (map[string]any, error) {
	for _, item := range docList(doc, "transactions") {
		tx, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("transaction entry is not an object")
		}
		if _, ok := tx["origin"]; !ok {
			tx["origin"] = "manual"
		}
	}
	return doc, nil
}

// upgradeV2 converts legacy one-sided transfers (a transaction carrying a
// "transfer_to" account) into linked two-leg groups. Leg and group IDs are
// derived from the source transaction ID so a re-run after an interrupted
// migration produces identical output.
func upgradeV2(doc map[string]any) (map[string]any, error) {
	txs := docList(doc, "transactions")
	var derived []any
	for _, item := range txs {
		tx, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("transaction entry is not an object")
		}
		dest, hasLegacy := tx["transfer_to"].(string)
		if !hasLegacy || dest == "" {
			continue
		}
		id, _ := tx["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("legacy transfer has no id")
		}
		group := "tg-" + id
		tx["transfer_group_id"] = group
		tx["counter_account_id"] = dest
		delete(tx, "transfer_to")

		amount := fmt.Sprintf("%v", tx["amount"])
		leg := map[string]any{
			"id":                 id + "-leg",
			"account_id":         dest,
			"counter_account_id": tx["account_id"],
			"amount":             negate(amount),
			"currency":           tx["currency"],
			"timestamp":          tx["timestamp"],
			"note":               tx["note"],
			"origin":             tx["origin"],
			"transfer_group_id":  group,
		}
		derived = append(derived, leg)
	}
	if len(derived) > 0 {
		doc["transactions"] = append(txs, derived...)
	}
	return doc, nil
}

// negate flips the sign of a decimal string without parsing it numerically,
// so no precision is lost on the way through.
func negate(amount string) string {
	if len(amount) > 0 && amount[0] == '-' {
		return amount[1:]
	}
	return "-" + amount
}

// upgradeV3 backfills rule ordering and budget rollover policies. Rules keep
// their stored list order as priority; everything defaults to enabled.
func upgradeV3(doc map[string]any) (map[string]any, error) {
	for i, item := range docList(doc, "rules") {
		rule, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("rule entry is not an object")
		}
		if _, ok := rule["priority"]; !ok {
			rule["priority"] = i + 1
		}
		if _, ok := rule["enabled"]; !ok {
			rule["enabled"] = true
		}
	}
	for _, item := range docList(doc, "budgets") {
		budget, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("budget entry is not an object")
		}
		if _, ok := budget["rollover"]; !ok {
			budget["rollover"] = "none"
		}
	}
	return doc, nil
}
