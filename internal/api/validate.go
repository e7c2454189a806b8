package api

import (
    "fmt"
    "net/url"
    "strings"

    "sigscore/internal/model"
)

func validateSubscriptionRequest(req *model.SubscriptionRequest) error {
    if err := validateTargetURL(req.TargetURL); err != nil {
        return err
    }
    if err := validateEventType(req.EventType); err != nil {
        return err
    }
    return validateFilters(req.Filters)
}

func validateSubscriptionUpdate(upd *model.SubscriptionUpdate) error {
    if upd.TargetURL != nil {
        if err := validateTargetURL(*upd.TargetURL); err != nil {
            return err
        }
    }
    if upd.EventType != nil {
        if err := validateEventType(*upd.EventType); err != nil {
            return err
        }
    }
    return validateFilters(upd.Filters)
}

func validateTargetURL(raw string) error {
    if raw == "" {
        return fmt.Errorf("targetUrl is required")
    }
    u, err := url.Parse(raw)
    if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
        return fmt.Errorf("targetUrl must be an absolute http(s) URL")
    }
    return nil
}

func validateEventType(t string) error {
    if !model.IsSupportedEventType(t) {
        return fmt.Errorf("unsupported eventType: %q (supported: %s)", t, strings.Join(model.SupportedEventTypes, ", "))
    }
    return nil
}

func validateFilters(f *model.SubscriptionFilters) error {
    if f == nil {
        return nil
    }
    if f.ScoreAbove != nil && f.ScoreBelow != nil && *f.ScoreAbove >= *f.ScoreBelow {
        return fmt.Errorf("scoreAbove must be less than scoreBelow")
    }
    return nil
}
