package connector

import "net/http"

// withHeaders returns a copy of base whose transport stamps the given
// headers on every outbound request, leaving keys the request already
// carries untouched.
func withHeaders(base *http.Client, headers http.Header) *http.Client {
	if len(headers) == 0 {
		return base
	}
	clone := *base
	clone.Transport = &headerRoundTripper{
		next:    defaultRoundTripper(base.Transport),
		headers: headers,
	}
	return &clone
}

// bearerHeaders merges an Authorization bearer header with extra headers,
// never letting an extra header override a key that is already set.
func bearerHeaders(authToken string, extra map[string]string) http.Header {
	headers := make(http.Header)
	if authToken != "" {
		headers.Set("Authorization", "Bearer "+authToken)
	}
	for k, v := range extra {
		if headers.Get(k) == "" {
			headers.Set(k, v)
		}
	}
	return headers
}

type headerRoundTripper struct {
	next    http.RoundTripper
	headers http.Header
}

func (rt *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	for k, values := range rt.headers {
		if req.Header.Get(k) != "" {
			continue
		}
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return rt.next.RoundTrip(req)
}

func defaultRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next != nil {
		return next
	}
	return http.DefaultTransport
}
