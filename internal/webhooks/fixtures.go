package webhooks

// SamplePayload returns a representative event payload for test deliveries.
// Shapes mirror what the upstream domain code fires for each event type.
func SamplePayload(eventType string) map[string]any {
    switch eventType {
    case "signal.created":
        return map[string]any{
            "accountId":  "acct_sample",
            "signalType": "pricing_page_visit",
            "data": map[string]any{
                "source":   "web",
                "pageUrl":  "https://example.com/pricing",
                "visitor":  "vis_sample",
                "occurred": "2024-01-15T09:30:00Z",
            },
        }
    case "contact.created", "contact.updated":
        return map[string]any{
            "accountId": "acct_sample",
            "data": map[string]any{
                "contactId": "cont_sample",
                "email":     "jordan@example.com",
                "name":      "Jordan Sample",
                "title":     "Head of Operations",
            },
        }
    case "company.created":
        return map[string]any{
            "accountId": "acct_sample",
            "data": map[string]any{
                "companyId": "comp_sample",
                "name":      "Example Industries",
                "domain":    "example.com",
                "employees": 250,
            },
        }
    case "deal.created":
        return map[string]any{
            "accountId": "acct_sample",
            "data": map[string]any{
                "dealId":   "deal_sample",
                "name":     "Example Industries - Expansion",
                "amount":   48000,
                "stage":    "qualification",
                "currency": "USD",
            },
        }
    case "deal.stage_changed":
        return map[string]any{
            "accountId": "acct_sample",
            "data": map[string]any{
                "dealId":        "deal_sample",
                "previousStage": "qualification",
                "stage":         "proposal",
                "amount":        48000,
            },
        }
    case "score.changed":
        return map[string]any{
            "accountId": "acct_sample",
            "newScore":  85,
            "newTier":   "HOT",
            "data": map[string]any{
                "previousScore": 62,
                "newScore":      85,
                "reason":        "surge in product signals",
            },
        }
    case "tier.changed":
        return map[string]any{
            "accountId": "acct_sample",
            "newTier":   "HOT",
            "data": map[string]any{
                "previousTier": "WARM",
                "newTier":      "HOT",
                "score":        85,
            },
        }
    default:
        return map[string]any{"accountId": "acct_sample", "data": map[string]any{}}
    }
}
