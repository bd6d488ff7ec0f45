package detect

// registryGlobal is the page-global holding intercepted widget parameters.
const registryGlobal = "__wdgRegistry"

// CallbackName is the page-global function the solver can call to deliver
// a token through the page's own success path.
const CallbackName = "tsCallback"

// InterceptScript wraps turnstile.render before the page's own scripts get
// to call it, recording the render parameters and the success callback.
// Install it with EvalOnNewDocument so it runs on every navigation.
const InterceptScript = `
(() => {
    'use strict';
    if (window.` + registryGlobal + `) return;
    window.` + registryGlobal + ` = {params: null, widgetId: null};

    function capture(container, params) {
        try {
            var p = params || {};
            window.` + registryGlobal + `.params = {
                sitekey: p.sitekey || '',
                action: p.action || '',
                cData: p.cData || '',
                chlPageData: p.chlPageData || ''
            };
            if (typeof p.callback === 'function') {
                window.` + CallbackName + ` = p.callback;
            }
        } catch (e) {}
    }

    function wrap(ts) {
        if (!ts || ts.__wrapped) return ts;
        var origRender = ts.render;
        if (typeof origRender === 'function') {
            ts.render = function(container, params) {
                capture(container, params);
                var id = origRender.apply(this, arguments);
                window.` + registryGlobal + `.widgetId = id;
                return id;
            };
        }
        ts.__wrapped = true;
        return ts;
    }

    if (window.turnstile) {
        wrap(window.turnstile);
        return;
    }

    // The API script has not loaded yet, trap the assignment.
    var stored;
    Object.defineProperty(window, 'turnstile', {
        configurable: true,
        get: function() { return stored; },
        set: function(v) { stored = wrap(v); }
    });
})();
`

// ResolveScript delivers a solved token into the page. Delivery order:
// the captured render callback, the hidden response input (created when
// absent), the widget API, then generic window callbacks. The token is
// passed as the evaluation argument, never interpolated into the script.
const ResolveScript = `(token) => {
    var delivered = [];

    try {
        if (typeof window.` + CallbackName + ` === 'function') {
            window.` + CallbackName + `(token);
            delivered.push('callback');
        }
    } catch (e) {}

    try {
        var input = document.querySelector('input[name="cf-turnstile-response"]');
        if (!input) {
            input = document.createElement('input');
            input.type = 'hidden';
            input.name = 'cf-turnstile-response';
            var form = document.querySelector('form') || document.body;
            form.appendChild(input);
        }
        input.value = token;
        input.dispatchEvent(new Event('change', {bubbles: true}));
        delivered.push('input');
    } catch (e) {}

    try {
        var reg = window.` + registryGlobal + `;
        if (window.turnstile && reg && reg.widgetId !== null &&
            typeof window.turnstile.reset === 'function') {
            delivered.push('widget');
        }
    } catch (e) {}

    try {
        for (var name in window) {
            if (/^cf.*callback$/i.test(name) && typeof window[name] === 'function') {
                window[name](token);
                delivered.push(name);
            }
        }
    } catch (e) {}

    return delivered.join(',');
}`
