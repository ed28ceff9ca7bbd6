package scoring

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"antygravity/internal/domain"
)

const (
	maxNameLen        = 255
	maxCategoryLen    = 100
	maxPermissions    = 512
	maxEndpoints      = 256
	maxPermissionName = 255
)

// Android application ids and iOS bundle ids: dot separated, at least two segments.
var packageNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]*(\.[A-Za-z0-9_\-]+)+$`)

// Validate checks a descriptor and returns a normalised copy: trimmed
// strings, upper-case network level, de-duplicated permissions and
// endpoints. Problems come back as *domain.ValidationError.
func Validate(d domain.AppDescriptor) (domain.AppDescriptor, error) {
	verr := &domain.ValidationError{}
	out := domain.AppDescriptor{
		PackageName:       strings.TrimSpace(d.PackageName),
		AppName:           strings.TrimSpace(d.AppName),
		Category:          strings.TrimSpace(d.Category),
		NetworkUsageLevel: strings.ToUpper(strings.TrimSpace(d.NetworkUsageLevel)),
		InstallSource:     strings.TrimSpace(d.InstallSource),
	}

	switch {
	case out.PackageName == "":
		verr.Add("package_name", "this field is required")
	case len(out.PackageName) > maxNameLen:
		verr.Add("package_name", fmt.Sprintf("must be at most %d characters", maxNameLen))
	case !packageNameRe.MatchString(out.PackageName):
		verr.Add("package_name", "must be a dotted application identifier such as com.example.app")
	}

	switch {
	case out.AppName == "":
		verr.Add("app_name", "this field is required")
	case len(out.AppName) > maxNameLen:
		verr.Add("app_name", fmt.Sprintf("must be at most %d characters", maxNameLen))
	}

	if len(out.Category) > maxCategoryLen {
		verr.Add("category", fmt.Sprintf("must be at most %d characters", maxCategoryLen))
	}
	if len(out.InstallSource) > maxNameLen {
		verr.Add("install_source", fmt.Sprintf("must be at most %d characters", maxNameLen))
	}

	switch out.NetworkUsageLevel {
	case "", domain.UsageLow, domain.UsageMedium, domain.UsageHigh:
	default:
		verr.Add("network_usage_level", fmt.Sprintf("%q is not one of LOW, MEDIUM, HIGH", d.NetworkUsageLevel))
	}

	switch {
	case d.Permissions == nil:
		verr.Add("permissions", "this field is required")
	case len(d.Permissions) > maxPermissions:
		verr.Add("permissions", fmt.Sprintf("at most %d permissions are accepted", maxPermissions))
	default:
		out.Permissions = make([]string, 0, len(d.Permissions))
		seen := make(map[string]bool, len(d.Permissions))
		for i, perm := range d.Permissions {
			perm = strings.TrimSpace(perm)
			if perm == "" || len(perm) > maxPermissionName || strings.ContainsAny(perm, " \t\r\n") {
				verr.Add("permissions", fmt.Sprintf("entry %d is not a valid permission name", i))
				continue
			}
			if !seen[perm] {
				seen[perm] = true
				out.Permissions = append(out.Permissions, perm)
			}
		}
	}

	if len(d.Endpoints) > maxEndpoints {
		verr.Add("endpoints", fmt.Sprintf("at most %d endpoints are accepted", maxEndpoints))
	} else if len(d.Endpoints) > 0 {
		seen := make(map[string]bool, len(d.Endpoints))
		for i, ep := range d.Endpoints {
			host, err := EndpointHost(ep)
			if err != nil {
				verr.Add("endpoints", fmt.Sprintf("entry %d: %v", i, err))
				continue
			}
			if !seen[host] {
				seen[host] = true
				out.Endpoints = append(out.Endpoints, host)
			}
		}
	}

	if !verr.Empty() {
		return domain.AppDescriptor{}, verr
	}
	return out, nil
}

// EndpointHost extracts the lower-case host from a URL, host:port or bare host.
func EndpointHost(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty endpoint")
	}
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("malformed endpoint")
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || strings.ContainsAny(host, " \t/") {
		return "", fmt.Errorf("endpoint has no host")
	}
	if net.ParseIP(host) == nil && !strings.Contains(host, ".") && host != "localhost" {
		return "", fmt.Errorf("endpoint host %q is not a domain or IP address", host)
	}
	return host, nil
}
