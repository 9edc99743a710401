package rpower

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"RackPower/internal/driver"
	"RackPower/internal/parser"
	"RackPower/internal/util"
)

// Power changes go through rpowerd rather than straight to the BMCs,
// so the daemon's per-node serialization applies no matter where the
// request comes from.

var httpClient = &http.Client{Timeout: 10 * time.Minute}

type nodeInfo struct {
	SystemID   string `json:"system_id"`
	Hostname   string `json:"hostname"`
	PowerType  string `json:"power_type"`
	PowerState string `json:"power_state"`
	Busy       bool   `json:"busy"`
}

type actionResult struct {
	Hostname string `json:"hostname"`
	SystemID string `json:"system_id"`
	Status   string `json:"status"`
	State    string `json:"state,omitempty"`
	Error    string `json:"error,omitempty"`
}

func fetchNodes() ([]nodeInfo, error) {
	resp, err := httpClient.Get(FlagServerURL + "/v1/nodes")
	if err != nil {
		return nil, fmt.Errorf("failed to reach rpowerd at %s: %w", FlagServerURL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpowerd returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var nodes []nodeInfo
	gjson.GetBytes(body, "nodes").ForEach(func(_, value gjson.Result) bool {
		nodes = append(nodes, nodeInfo{
			SystemID:   value.Get("system_id").String(),
			Hostname:   value.Get("hostname").String(),
			PowerType:  value.Get("power_type").String(),
			PowerState: value.Get("power_state").String(),
			Busy:       value.Get("busy").Bool(),
		})
		return true
	})
	return nodes, nil
}

// resolveTargets expands a host expression and matches every entry
// against the rack's hostnames and system IDs.
func resolveTargets(hostExpr string) ([]nodeInfo, error) {
	hosts, err := util.ParseHostList(hostExpr)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("empty host expression")
	}

	nodes, err := fetchNodes()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]nodeInfo, 2*len(nodes))
	for _, node := range nodes {
		byName[node.Hostname] = node
		byName[node.SystemID] = node
	}

	targets := make([]nodeInfo, 0, len(hosts))
	for _, host := range hosts {
		node, ok := byName[host]
		if !ok {
			return nil, fmt.Errorf("unknown node: %s", host)
		}
		targets = append(targets, node)
	}
	return targets, nil
}

func ChangePower(change driver.Change, hostExpr string) util.RackCmdError {
	overrides, err := parser.ParseContext(FlagSetExpr)
	if err != nil {
		log.Errorf("Invalid set expression: %v", err)
		return util.ErrorCmdArg
	}
	targets, err := resolveTargets(hostExpr)
	if err != nil {
		log.Errorln(err)
		return util.ErrorCmdArg
	}

	results := make([]actionResult, 0, len(targets))
	failed := false
	for _, target := range targets {
		res := postChange(change, target, overrides)
		if res.Status != "done" && res.Status != "started" {
			failed = true
		}
		results = append(results, res)
	}

	printResults(results)
	if failed {
		return util.ErrorBackend
	}
	return util.ErrorSuccess
}

func postChange(change driver.Change, target nodeInfo, overrides map[string]string) actionResult {
	res := actionResult{Hostname: target.Hostname, SystemID: target.SystemID}

	payload, err := json.Marshal(map[string]any{
		"system_id": target.SystemID,
		"context":   overrides,
		"wait":      FlagWait,
	})
	if err != nil {
		res.Status = "failed"
		res.Error = err.Error()
		return res
	}

	resp, err := httpClient.Post(
		fmt.Sprintf("%s/v1/power/%s", FlagServerURL, change),
		"application/json", bytes.NewReader(payload))
	if err != nil {
		res.Status = "failed"
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Status = "failed"
		res.Error = err.Error()
		return res
	}

	res.Status = gjson.GetBytes(body, "status").String()
	res.State = gjson.GetBytes(body, "state").String()
	res.Error = gjson.GetBytes(body, "error").String()
	if res.Status == "" {
		res.Status = "failed"
		res.Error = strings.TrimSpace(string(body))
	}
	return res
}

func QueryPower(hostExpr string) util.RackCmdError {
	targets, err := resolveTargets(hostExpr)
	if err != nil {
		log.Errorln(err)
		return util.ErrorCmdArg
	}

	results := make([]actionResult, 0, len(targets))
	failed := false
	for _, target := range targets {
		res := actionResult{Hostname: target.Hostname, SystemID: target.SystemID}

		resp, err := httpClient.Get(fmt.Sprintf("%s/v1/power/state?system_id=%s",
			FlagServerURL, url.QueryEscape(target.SystemID)))
		if err != nil {
			res.Status = "failed"
			res.Error = err.Error()
			failed = true
			results = append(results, res)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		res.State = gjson.GetBytes(body, "state").String()
		res.Error = gjson.GetBytes(body, "error").String()
		if resp.StatusCode == http.StatusOK {
			res.Status = "done"
		} else {
			res.Status = "failed"
			failed = true
		}
		results = append(results, res)
	}

	printResults(results)
	if failed {
		return util.ErrorBackend
	}
	return util.ErrorSuccess
}

func ShowStatus() util.RackCmdError {
	nodes, err := fetchNodes()
	if err != nil {
		log.Errorln(err)
		return util.ErrorNetwork
	}

	if FlagJson {
		output, _ := json.Marshal(nodes)
		fmt.Println(string(output))
		return util.ErrorSuccess
	}

	table := tablewriter.NewWriter(os.Stdout)
	util.SetBorderlessTable(table)
	table.SetHeader([]string{"HOSTNAME", "SYSTEM_ID", "POWER_TYPE", "STATE", "BUSY"})
	for _, node := range nodes {
		table.Append([]string{
			node.Hostname, node.SystemID, node.PowerType,
			node.PowerState, fmt.Sprintf("%t", node.Busy),
		})
	}
	table.Render()
	return util.ErrorSuccess
}

func printResults(results []actionResult) {
	if FlagJson {
		output, _ := json.Marshal(results)
		fmt.Println(string(output))
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	util.SetBorderlessTable(table)
	table.SetHeader([]string{"HOSTNAME", "SYSTEM_ID", "STATUS", "STATE", "ERROR"})
	for _, res := range results {
		table.Append([]string{res.Hostname, res.SystemID, res.Status, res.State, res.Error})
	}
	table.Render()
}
