// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package registry is the HTTP client for a remote image catalog. It mirrors
// the read surface of the local commit graph: resolving refs and listing the
// fragment inventory of an image, which is the remote half of sync planning.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/strata-db/strata/graph"
	"github.com/strata-db/strata/hash"
)

type Client struct {
	base   string
	client *http.Client
}

func NewClient(base string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), client: client}
}

type inventoryResponse struct {
	Fragments []string `json:"fragments"`
}

type resolveResponse struct {
	ImageID string `json:"image_id"`
}

// errorResponse is the registry's structured error body. Kind mirrors the
// local error taxonomy so callers can branch the same way for local and
// remote failures.
type errorResponse struct {
	Kind    string   `json:"kind"`
	Ref     string   `json:"ref,omitempty"`
	Matches []string `json:"matches,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Inventory returns the full fragment address set of an image, across all of
// its tables.
func (c *Client) Inventory(ctx context.Context, imageID hash.Hash) (hash.HashSet, error) {
	var body inventoryResponse
	err := c.get(ctx, c.base+"/images/"+imageID.String()+"/inventory", &body)
	if err != nil {
		return nil, err
	}
	inv := hash.HashSet{}
	for _, s := range body.Fragments {
		h, ok := hash.MaybeParse(s)
		if !ok {
			return nil, fmt.Errorf("registry: malformed address %q in inventory", s)
		}
		inv.Insert(h)
	}
	return inv, nil
}

// Resolve turns a tag or image id prefix into a full image id.
func (c *Client) Resolve(ctx context.Context, ref string) (hash.Hash, error) {
	var body resolveResponse
	err := c.get(ctx, c.base+"/resolve?ref="+url.QueryEscape(ref), &body)
	if err != nil {
		return hash.Hash{}, err
	}
	h, ok := hash.MaybeParse(body.ImageID)
	if !ok {
		return hash.Hash{}, fmt.Errorf("registry: malformed image id %q", body.ImageID)
	}
	return h, nil
}

func (c *Client) get(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "registry: build request")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "registry: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "registry: decode response")
}

// decodeError maps a structured error body onto the local error kinds, so a
// remote unknown ref fails the same way a local one does.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var body errorResponse
	if json.Unmarshal(data, &body) == nil && body.Kind != "" {
		switch body.Kind {
		case "unknown_ref":
			return &graph.UnknownRefError{Ref: body.Ref}
		case "ambiguous_ref":
			matches := make(hash.HashSlice, 0, len(body.Matches))
			for _, m := range body.Matches {
				if h, ok := hash.MaybeParse(m); ok {
					matches = append(matches, h)
				}
			}
			return &graph.AmbiguousRefError{Ref: body.Ref, Matches: matches}
		}
		return fmt.Errorf("registry: %s: %s", body.Kind, body.Message)
	}
	return fmt.Errorf("registry: remote returned %s", resp.Status)
}
